// Package configlayer documents the precedence ordering among config
// layers a full configuration loader would merge. Layering itself
// (reading and merging TOML/JSON from each of these sources) is out of
// scope; this package only carries the ordering as a tested, reusable
// type for any future loader to consume.
package configlayer

// Source identifies one layer a configuration value can come from.
// Every Source has a Precedence; settings from a layer with a higher
// precedence override the same setting from a layer with a lower one.
type Source struct {
	Kind Kind

	// Fields below are populated only for the Kind that names them;
	// the rest are zero. Mirrors the original's tagged-union layout
	// without needing a Go sum type.
	MdmDomain         string
	MdmKey            string
	SystemFile        string
	UserFile          string
	ProjectDotFolder  string
	LegacyManagedFile string
}

// Kind discriminates the seven config layers.
type Kind int

const (
	KindMdm Kind = iota
	KindSystem
	KindUser
	KindProject
	KindSessionFlags
	KindLegacyManagedConfigTomlFromFile
	KindLegacyManagedConfigTomlFromMdm
)

// precedence assigns each Kind its override rank: Mdm < System < User <
// Project < SessionFlags < LegacyManagedConfigTomlFromFile <
// LegacyManagedConfigTomlFromMdm.
var precedence = map[Kind]int16{
	KindMdm:                             0,
	KindSystem:                          10,
	KindUser:                            20,
	KindProject:                         25,
	KindSessionFlags:                    30,
	KindLegacyManagedConfigTomlFromFile: 40,
	KindLegacyManagedConfigTomlFromMdm:  50,
}

// Precedence reports s's override rank. A setting from a layer with a
// higher precedence overrides the same setting from a layer with a
// lower one.
func (s Source) Precedence() int16 {
	return precedence[s.Kind]
}

// Less reports whether s is overridden by other, i.e. s.Precedence() <
// other.Precedence().
func (s Source) Less(other Source) bool {
	return s.Precedence() < other.Precedence()
}

func Mdm(domain, key string) Source {
	return Source{Kind: KindMdm, MdmDomain: domain, MdmKey: key}
}

func System(file string) Source {
	return Source{Kind: KindSystem, SystemFile: file}
}

func User(file string) Source {
	return Source{Kind: KindUser, UserFile: file}
}

func Project(dotFolder string) Source {
	return Source{Kind: KindProject, ProjectDotFolder: dotFolder}
}

func SessionFlags() Source {
	return Source{Kind: KindSessionFlags}
}

func LegacyManagedConfigTomlFromFile(file string) Source {
	return Source{Kind: KindLegacyManagedConfigTomlFromFile, LegacyManagedFile: file}
}

func LegacyManagedConfigTomlFromMdm() Source {
	return Source{Kind: KindLegacyManagedConfigTomlFromMdm}
}
