package feed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeroinstall-go/zeroinstall/recipe"
)

const sampleFeedXML = `<?xml version="1.0" ?>
<interface uri="http://example.com/myapp.xml">
  <name>MyApp</name>
  <group main="bin/myapp">
    <implementation id="sha1new=ABCDEFGHIJKLMNOPQRSTUVWXYZ234567" version="1.0" arch="Linux-x86_64" stability="stable">
      <archive href="http://example.com/myapp-1.0.tar.gz" size="1024"/>
    </implementation>
    <implementation id="sha1new=BBCDEFGHIJKLMNOPQRSTUVWXYZ234567" version="2.0" stability="testing">
      <requires interface="http://example.com/lib.xml" version="1.0..">
        <environment name="PATH" insert="bin" mode="prepend"/>
      </requires>
      <recipe>
        <archive href="http://example.com/myapp-2.0.tar.gz" size="2048"/>
        <rename source="old" dest="new"/>
      </recipe>
    </implementation>
  </group>
</interface>`

func TestParseXMLBasic(t *testing.T) {
	f, err := ParseXML(strings.NewReader(sampleFeedXML))
	require.NoError(t, err)
	require.Equal(t, "http://example.com/myapp.xml", f.URI)
	require.Len(t, f.Groups, 1)
	require.Len(t, f.Groups[0].Groups[0].Implementations, 2)

	n, err := Normalize(f, f.URI)
	require.NoError(t, err)
	require.Len(t, n.Implementations, 2)

	first := n.Implementations[0]
	require.Equal(t, Version("1.0"), first.Version)
	require.Equal(t, Linux, first.Arch.OS)
	require.Equal(t, X64, first.Arch.CPU)
	require.Equal(t, Stable, first.Stability)
	require.Equal(t, "bin/myapp", first.Commands["run"].Path)
	require.Len(t, first.RetrievalMethods, 1)
	_, ok := first.RetrievalMethods[0].(recipe.Archive)
	require.True(t, ok)

	second := n.Implementations[1]
	require.Equal(t, Testing, second.Stability)
	require.Len(t, second.Dependencies, 1)
	require.Equal(t, "http://example.com/lib.xml", second.Dependencies[0].InterfaceURI)
	require.True(t, second.Dependencies[0].Versions.Contains("1.5"))
	require.Len(t, second.Dependencies[0].Bindings, 1)
	rec, ok := second.RetrievalMethods[0].(recipe.Recipe)
	require.True(t, ok)
	require.Len(t, rec.Steps, 2)
}

func TestParseXMLFeedRefsAndRestrictions(t *testing.T) {
	doc := `<?xml version="1.0" ?>
<interface uri="http://example.com/app.xml">
  <feed src="http://example.com/other.xml"/>
  <restricts interface="http://example.com/lib.xml" version="..!3.0"/>
  <group>
    <implementation id="sha1new=ABCDEFGHIJKLMNOPQRSTUVWXYZ234567" version="1.0"/>
  </group>
</interface>`
	f, err := ParseXML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, []string{"http://example.com/other.xml"}, f.FeedRefs)
	require.Len(t, f.Restrictions, 1)

	n, err := Normalize(f, f.URI)
	require.NoError(t, err)
	require.Len(t, n.Implementations[0].Restrictions, 1)
}
