package flag

import (
	"testing"

	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestDiscoverManifests(t *testing.T) {
	tree := []entity.TreeEntry{
		{Path: "README.md", Type: entity.TreeTypeBlob},
		{Path: "direct", Type: entity.TreeTypeTree},
		{Path: "direct/msg1", Type: entity.TreeTypeTree},
		{Path: "direct/msg1/manifest.json", Type: entity.TreeTypeBlob},
		{Path: "direct/msg1/image.png", Type: entity.TreeTypeBlob},
		{Path: "manifest.json", Type: entity.TreeTypeBlob},
		{Path: "stories/manifest.json", Type: entity.TreeTypeBlob},
		{Path: "stories/s1/manifest.json", Type: entity.TreeTypeBlob},
		{Path: "reels/r1/manifest.json", Type: entity.TreeTypeTree},
	}

	require.Equal(t, []entity.ManifestRef{
		{Category: "direct", Folder: "msg1", Index: 3},
		{Category: "stories", Folder: "s1", Index: 7},
	}, DiscoverManifests(tree))

	require.Empty(t, DiscoverManifests(nil))
}

func TestCategoryIcon(t *testing.T) {
	testCases := []struct {
		name   string
		expect string
	}{
		{name: "direct", expect: "Send"},
		{name: "Stories", expect: "PlusCircle"},
		{name: "Meta AI", expect: "Briefcase"},
		{name: "unknown", expect: "Flag"},
		{name: "", expect: "Flag"},
	}

	for _, tc := range testCases {
		require.Equal(t, tc.expect, CategoryIcon(tc.name), tc.name)
	}
}

func TestAggregate(t *testing.T) {
	refs := []entity.ManifestRef{
		{Category: "direct", Folder: "a"},
		{Category: "stories", Folder: "b"},
		{Category: "direct", Folder: "c"},
		{Category: "reels", Folder: "d"},
	}
	manifests := []*entity.FlagManifest{
		{Flags: []entity.Flag{{ID: "a1"}, {ID: "a2"}}},
		{Flags: []entity.Flag{{ID: "b1"}}},
		{Flags: []entity.Flag{{ID: "c1"}}},
		nil,
	}

	categories := Aggregate(refs, manifests)
	require.Len(t, categories, 2)

	require.Equal(t, "direct", categories[0].Name)
	require.Equal(t, "direct", categories[0].Path)
	require.Equal(t, "Send", categories[0].Icon)
	require.Equal(t, []string{"a1", "a2", "c1"}, ids(categories[0].Flags))

	require.Equal(t, "stories", categories[1].Name)
	require.Equal(t, []string{"b1"}, ids(categories[1].Flags))

	require.Empty(t, Aggregate(nil, nil))
}

func TestAggregateEveryFlagOnce(t *testing.T) {
	refs := []entity.ManifestRef{
		{Category: "x", Folder: "1"},
		{Category: "y", Folder: "2"},
		{Category: "x", Folder: "3"},
	}
	manifests := []*entity.FlagManifest{
		{Flags: []entity.Flag{{ID: "1"}}},
		{Flags: []entity.Flag{{ID: "2"}, {ID: "3"}}},
		{Flags: []entity.Flag{{ID: "4"}}},
	}

	categories := Aggregate(refs, manifests)
	require.ElementsMatch(t, []string{"1", "2", "3", "4"}, ids(Flatten(categories)))

	seen := make(map[string]bool)
	for _, c := range categories {
		require.False(t, seen[c.Name], "duplicate category %s", c.Name)
		seen[c.Name] = true
	}
}

func TestSearch(t *testing.T) {
	flags := []entity.Flag{
		{ID: "72063", Title: "Direct Message Enhancement", Tags: []string{"messaging"}, Author: "instafel_user"},
		{ID: "51234", Title: "Stories Camera", Description: "New FILTERS", FlagName: ptr("ig_android_stories_camera_v2")},
		{ID: "98765", Title: "Reels", Tags: nil},
	}

	testCases := []struct {
		name   string
		query  string
		expect []string
	}{
		{name: "Scenario 1: Title", query: "direct", expect: []string{"72063"}},
		{name: "Scenario 2: Case and spaces", query: "  FiLtErS ", expect: []string{"51234"}},
		{name: "Scenario 3: Tag", query: "messag", expect: []string{"72063"}},
		{name: "Scenario 4: Author", query: "instafel", expect: []string{"72063"}},
		{name: "Scenario 5: Id", query: "987", expect: []string{"98765"}},
		{name: "Scenario 6: Flag name", query: "camera_v2", expect: []string{"51234"}},
		{name: "Scenario 7: Nothing", query: "zzz", expect: []string{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, ids(Search(flags, tc.query)))
		})
	}
}

func TestSearchBlankIsIdentity(t *testing.T) {
	flags := []entity.Flag{{ID: "1"}, {ID: "2"}}

	require.Equal(t, flags, Search(flags, ""))
	require.Equal(t, flags, Search(flags, "   "))
}

func TestSearchIdempotent(t *testing.T) {
	flags := FallbackCategories()[0].Flags
	once := Search(flags, "enhance")

	require.Equal(t, once, Search(once, "enhance"))
	require.Subset(t, ids(flags), ids(once))
}

func TestFallbackCategoriesAreIndependent(t *testing.T) {
	first := FallbackCategories()
	require.Len(t, first, 3)
	require.Equal(t, []string{"direct", "stories", "reels"}, []string{first[0].Name, first[1].Name, first[2].Name})

	first[0].Flags[0].Title = "changed"
	first[0].Flags[0].Tags[0] = "changed"
	*first[0].Flags[0].FlagName = "changed"

	second := FallbackCategories()
	require.Equal(t, "Direct Message Enhancement", second[0].Flags[0].Title)
	require.Equal(t, "direct", second[0].Flags[0].Tags[0])
	require.Equal(t, "ig_android_direct_inbox_redesign", *second[0].Flags[0].FlagName)
}

func ids(flags []entity.Flag) []string {
	res := make([]string, 0, len(flags))
	for _, f := range flags {
		res = append(res, f.ID)
	}

	return res
}
