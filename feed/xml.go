package feed

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/zeroinstall-go/zeroinstall/digest"
	"github.com/zeroinstall-go/zeroinstall/recipe"
	"github.com/zeroinstall-go/zeroinstall/zerr"
)

// ParseXML decodes a 0install feed document into a raw (unnormalized) Feed.
// No third-party XML library in the retrieved pack handles this grammar
// (0install's own <group>/<implementation> nesting is specific to the
// format); encoding/xml is the standard, idiomatic choice for a one-off
// schema with no reuse potential elsewhere in the ecosystem. See DESIGN.md.
func ParseXML(r io.Reader) (Feed, error) {
	var doc xmlInterface
	dec := xml.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Feed{}, zerr.Wrap(zerr.InvalidData, err, "feed: parse xml")
	}

	f := Feed{URI: doc.URI}
	for _, fr := range doc.Feeds {
		f.FeedRefs = append(f.FeedRefs, fr.Src)
	}
	for _, r := range doc.Restricts {
		f.Restrictions = append(f.Restrictions, toDependency(r, true))
	}

	root := xmlGroup{
		Arch:         doc.Arch,
		Stability:    doc.Stability,
		Version:      doc.Version,
		MainAttr:     doc.MainAttr,
		Commands:     doc.Commands,
		Requires:     doc.Requires,
		Restricts:    doc.Restricts,
		Languages:    doc.Languages,
		Groups:       doc.Groups,
		Implementations: doc.Implementations,
	}
	f.Groups = []Group{toGroup(root)}
	return f, nil
}

type xmlInterface struct {
	XMLName   xml.Name          `xml:"interface"`
	URI       string            `xml:"uri,attr"`
	MainAttr  string            `xml:"main,attr"`
	Arch      string            `xml:"arch,attr"`
	Stability string            `xml:"stability,attr"`
	Version   string            `xml:"version,attr"`
	Languages string            `xml:"langs,attr"`
	Feeds     []xmlFeedRef      `xml:"feed"`
	Requires  []xmlDependency   `xml:"requires"`
	Restricts []xmlDependency   `xml:"restricts"`
	Commands  []xmlCommand      `xml:"command"`
	Groups    []xmlGroup        `xml:"group"`
	Implementations []xmlImplementation `xml:"implementation"`
}

type xmlFeedRef struct {
	Src string `xml:"src,attr"`
}

type xmlGroup struct {
	Arch      string `xml:"arch,attr"`
	Stability string `xml:"stability,attr"`
	Version   string `xml:"version,attr"`
	MainAttr  string `xml:"main,attr"`
	Languages string `xml:"langs,attr"`

	Commands  []xmlCommand    `xml:"command"`
	Requires  []xmlDependency `xml:"requires"`
	Restricts []xmlDependency `xml:"restricts"`

	Groups          []xmlGroup          `xml:"group"`
	Implementations []xmlImplementation `xml:"implementation"`
}

type xmlImplementation struct {
	ID        string `xml:"id,attr"`
	Version   string `xml:"version,attr"`
	Arch      string `xml:"arch,attr"`
	Stability string `xml:"stability,attr"`
	MainAttr  string `xml:"main,attr"`
	Languages string `xml:"langs,attr"`
	Released  string `xml:"released,attr"`

	ManifestDigest *xmlManifestDigest `xml:"manifest-digest"`
	Commands       []xmlCommand       `xml:"command"`
	Requires       []xmlDependency    `xml:"requires"`

	Archives    []xmlArchive    `xml:"archive"`
	Files       []xmlFile       `xml:"file"`
	Recipes     []xmlRecipe     `xml:"recipe"`
}

type xmlManifestDigest struct {
	Sha1New   string `xml:"sha1new,attr"`
	Sha256    string `xml:"sha256,attr"`
	Sha256New string `xml:"sha256new,attr"`
}

func (m *xmlManifestDigest) toID() digest.ID {
	if m == nil {
		return ""
	}
	switch {
	case m.Sha256New != "":
		return digest.ID(digest.SHA256New.Prefix() + digest.SHA256New.Separator() + m.Sha256New)
	case m.Sha256 != "":
		return digest.ID(digest.SHA256.Prefix() + digest.SHA256.Separator() + m.Sha256)
	case m.Sha1New != "":
		return digest.ID(digest.SHA1New.Prefix() + digest.SHA1New.Separator() + m.Sha1New)
	default:
		return ""
	}
}

type xmlDependency struct {
	Interface  string `xml:"interface,attr"`
	Importance string `xml:"importance,attr"`
	Version    string `xml:"version,attr"`
	Use        string `xml:"use,attr"`

	Environments []xmlEnvironment      `xml:"environment"`
	Executables  []xmlExecutableInPath `xml:"executable-in-path"`
}

type xmlEnvironment struct {
	Name      string `xml:"name,attr"`
	Insert    string `xml:"insert,attr"`
	Value     string `xml:"value,attr"`
	Mode      string `xml:"mode,attr"`
	Default   string `xml:"default,attr"`
	Separator string `xml:"separator,attr"`
}

type xmlExecutableInPath struct {
	Name string `xml:"name,attr"`
}

type xmlCommand struct {
	Name     string          `xml:"name,attr"`
	Path     string          `xml:"path,attr"`
	Requires []xmlDependency `xml:"requires"`
	Runner   *xmlRunner      `xml:"runner"`
}

type xmlRunner struct {
	Interface string   `xml:"interface,attr"`
	Command   string   `xml:"command,attr"`
	Args      []string `xml:"arg"`
}

type xmlArchive struct {
	Href          string `xml:"href,attr"`
	Size          int64  `xml:"size,attr"`
	Type          string `xml:"type,attr"`
	Extract       string `xml:"extract,attr"`
	Dest          string `xml:"dest,attr"`
}

type xmlFile struct {
	Href       string `xml:"href,attr"`
	Size       int64  `xml:"size,attr"`
	Dest       string `xml:"dest,attr"`
	Executable string `xml:"executable,attr"`
}

type xmlRecipe struct {
	Archives []xmlArchive   `xml:"archive"`
	Files    []xmlFile      `xml:"file"`
	Removes  []xmlRemove    `xml:"remove"`
	Renames  []xmlRename    `xml:"rename"`
	Copies   []xmlCopyFrom  `xml:"copy-from"`
}

type xmlRemove struct {
	Path string `xml:"path,attr"`
}

type xmlRename struct {
	Source      string `xml:"source,attr"`
	Destination string `xml:"dest,attr"`
}

type xmlCopyFrom struct {
	Source      string `xml:"id,attr"`
	SourcePath  string `xml:"source,attr"`
	Destination string `xml:"dest,attr"`
}

func toGroup(g xmlGroup) Group {
	out := Group{
		Arch:      ParseArch(g.Arch),
		Version:   Version(g.Version),
		Languages: splitLangs(g.Languages),
	}
	if s, ok := ParseStability(g.Stability); ok {
		out.Stability = s
	}
	// A group's main= is inherited by contained groups and implementations
	// that do not declare their own.
	for i := range g.Groups {
		if g.Groups[i].MainAttr == "" {
			g.Groups[i].MainAttr = g.MainAttr
		}
	}
	for i := range g.Implementations {
		if g.Implementations[i].MainAttr == "" {
			g.Implementations[i].MainAttr = g.MainAttr
		}
	}
	if len(g.Commands) > 0 {
		out.Commands = map[string]Command{}
		for _, c := range g.Commands {
			cmd := toCommand(c)
			out.Commands[cmd.Name] = cmd
		}
	}
	for _, d := range g.Requires {
		out.Dependencies = append(out.Dependencies, toDependency(d, false))
	}
	for _, d := range g.Restricts {
		out.Restrictions = append(out.Restrictions, toDependency(d, true))
	}
	for _, sub := range g.Groups {
		out.Groups = append(out.Groups, toGroup(sub))
	}
	for _, impl := range g.Implementations {
		out.Implementations = append(out.Implementations, toRawImplementation(impl))
	}
	return out
}

func toRawImplementation(x xmlImplementation) rawImplementation {
	out := rawImplementation{
		ID:             x.ID,
		Version:        Version(x.Version),
		Arch:           ParseArch(x.Arch),
		ManifestDigest: x.ManifestDigest.toID(),
		Languages:      splitLangs(x.Languages),
		Main:           x.MainAttr,
	}
	if s, ok := ParseStability(x.Stability); ok {
		out.Stability = s
	}
	if x.Released != "" {
		if ts, err := strconv.ParseInt(x.Released, 10, 64); err == nil {
			out.Released = ts
		}
	}
	if len(x.Commands) > 0 {
		out.Commands = map[string]Command{}
		for _, c := range x.Commands {
			cmd := toCommand(c)
			out.Commands[cmd.Name] = cmd
		}
	}
	for _, d := range x.Requires {
		out.Dependencies = append(out.Dependencies, toDependency(d, false))
	}
	for _, a := range x.Archives {
		out.RetrievalMethods = append(out.RetrievalMethods, toArchive(a))
	}
	for _, fl := range x.Files {
		out.RetrievalMethods = append(out.RetrievalMethods, toSingleFile(fl))
	}
	for _, rc := range x.Recipes {
		out.RetrievalMethods = append(out.RetrievalMethods, toRecipe(rc))
	}
	return out
}

func toCommand(c xmlCommand) Command {
	cmd := Command{Name: c.Name, Path: c.Path}
	for _, d := range c.Requires {
		cmd.Dependencies = append(cmd.Dependencies, toDependency(d, false))
	}
	if c.Runner != nil {
		cmd.RunnerURI = c.Runner.Interface
		cmd.RunnerArgs = c.Runner.Args
	}
	return cmd
}

func toDependency(d xmlDependency, restriction bool) Dependency {
	dep := Dependency{
		InterfaceURI: d.Interface,
		Versions:     ParseRange(d.Version),
		Uses:         d.Use,
	}
	if d.Importance == "recommended" {
		dep.Importance = Recommended
	}
	if !restriction {
		for _, e := range d.Environments {
			dep.Bindings = append(dep.Bindings, Binding{
				Kind: "environment", Name: e.Name, Insert: e.Insert, Value: e.Value,
				Mode: e.Mode, Default: e.Default, Separator: e.Separator,
			})
		}
		for _, e := range d.Executables {
			dep.Bindings = append(dep.Bindings, Binding{Kind: "executable-in-path", Name: e.Name})
		}
	}
	return dep
}

func toArchive(a xmlArchive) recipe.Archive {
	return recipe.Archive{
		Href: a.Href, MimeType: a.Type, ExtractSubdir: a.Extract,
		Destination: a.Dest, Size: a.Size,
	}
}

func toSingleFile(f xmlFile) recipe.SingleFile {
	return recipe.SingleFile{
		Href: f.Href, Destination: f.Dest, Executable: f.Executable == "true", Size: f.Size,
	}
}

func toRecipe(r xmlRecipe) recipe.Recipe {
	var steps []recipe.Step
	for _, a := range r.Archives {
		steps = append(steps, toArchive(a))
	}
	for _, fl := range r.Files {
		steps = append(steps, toSingleFile(fl))
	}
	for _, rm := range r.Removes {
		steps = append(steps, recipe.Remove{Path: rm.Path})
	}
	for _, rn := range r.Renames {
		steps = append(steps, recipe.Rename{From: rn.Source, To: rn.Destination})
	}
	for _, cp := range r.Copies {
		steps = append(steps, recipe.CopyFrom{Source: cp.Source, SourcePath: cp.SourcePath, Destination: cp.Destination})
	}
	return recipe.Recipe{Steps: steps}
}

func splitLangs(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	cur := ""
	for _, r := range s {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
