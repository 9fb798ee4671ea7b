package flag

import (
	"strings"

	"github.com/jgivc/ghrelay/internal/entity"
	"github.com/tiendc/go-deepcopy"
)

const (
	manifestSuffix = "manifest.json"
	defaultIcon    = "Flag"
)

var categoryIcons = map[string]string{
	"all":       "Archive",
	"direct":    "Send",
	"reels":     "Play",
	"stories":   "PlusCircle",
	"feed":      "Archive",
	"interface": "Layout",
	"notes":     "FileText",
	"quality":   "Image",
	"profile":   "User",
	"comments":  "MessageCircle",
	"camera":    "Camera",
	"meta ai":   "Briefcase",
}

func CategoryIcon(name string) string {
	if icon, ok := categoryIcons[strings.ToLower(name)]; ok {
		return icon
	}

	return defaultIcon
}

// DiscoverManifests picks <category>/<folder>/.../manifest.json blobs out of a recursive tree,
// keeping tree order.
func DiscoverManifests(tree []entity.TreeEntry) []entity.ManifestRef {
	var refs []entity.ManifestRef
	for idx, item := range tree {
		if item.Type != entity.TreeTypeBlob || !strings.HasSuffix(item.Path, manifestSuffix) {
			continue
		}

		parts := strings.Split(item.Path, "/")
		if len(parts) < 3 || parts[0] == "" || parts[1] == "" {
			continue
		}

		refs = append(refs, entity.ManifestRef{
			Category: parts[0],
			Folder:   parts[1],
			Index:    idx,
		})
	}

	return refs
}

// Aggregate folds manifests into categories. manifests is aligned with refs and nil entries are skipped.
// Categories keep the position of their first manifest, flags keep manifest order.
func Aggregate(refs []entity.ManifestRef, manifests []*entity.FlagManifest) []entity.FlagCategory {
	categories := make([]entity.FlagCategory, 0)
	byName := make(map[string]int)

	for i, ref := range refs {
		if i >= len(manifests) || manifests[i] == nil {
			continue
		}

		idx, ok := byName[ref.Category]
		if !ok {
			idx = len(categories)
			byName[ref.Category] = idx
			categories = append(categories, entity.FlagCategory{
				Name:  ref.Category,
				Path:  ref.Category,
				Icon:  CategoryIcon(ref.Category),
				Flags: make([]entity.Flag, 0),
			})
		}

		categories[idx].Flags = append(categories[idx].Flags, manifests[i].Flags...)
	}

	return categories
}

// Search returns flags whose title, description, tags, author, id or flag name contain query,
// ignoring case. A blank query returns flags as is.
func Search(flags []entity.Flag, query string) []entity.Flag {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return flags
	}

	found := make([]entity.Flag, 0)
	for _, f := range flags {
		if matches(&f, q) {
			found = append(found, f)
		}
	}

	return found
}

func matches(f *entity.Flag, q string) bool {
	if contains(f.Title, q) || contains(f.Description, q) {
		return true
	}

	for _, tag := range f.Tags {
		if contains(tag, q) {
			return true
		}
	}

	if contains(f.Author, q) || contains(f.ID, q) {
		return true
	}

	return f.FlagName != nil && contains(*f.FlagName, q)
}

func contains(s, q string) bool {
	return strings.Contains(strings.ToLower(s), q)
}

// Flatten concatenates the flags of all categories in order.
func Flatten(categories []entity.FlagCategory) []entity.Flag {
	flags := make([]entity.Flag, 0)
	for _, c := range categories {
		flags = append(flags, c.Flags...)
	}

	return flags
}

// FallbackCategories returns a fresh copy of the built-in example catalog.
func FallbackCategories() []entity.FlagCategory {
	var categories []entity.FlagCategory
	if err := deepcopy.Copy(&categories, &fallbackCategories); err != nil {
		return nil
	}

	return categories
}

var fallbackCategories = []entity.FlagCategory{
	{
		Name: "direct",
		Path: "direct",
		Icon: "Send",
		Flags: []entity.Flag{
			{
				ID:          "72063",
				Title:       "Direct Message Enhancement",
				Description: "Enhanced direct messaging features with improved UI and functionality for better user experience.",
				Source:      "https://instafel.app/library/flag/view?id=72063",
				Tags:        []string{"direct", "messaging", "ui", "enhancement"},
				Author:      "instafel_user",
				DateAdded:   "2025-07-19",
				FlagName:    ptr("ig_android_direct_inbox_redesign"),
				Options: entity.FlagOption{
					IsEnabled:                  true,
					EditMedia:                  true,
					IsRedesignedPreviewEnabled: true,
				},
			},
		},
	},
	{
		Name: "stories",
		Path: "stories",
		Icon: "PlusCircle",
		Flags: []entity.Flag{
			{
				ID:          "51234",
				Title:       "Stories Camera Enhancement",
				Description: "Improved camera functionality for Instagram Stories with new filters and effects.",
				Source:      "https://instafel.app/library/flag/view?id=51234",
				Tags:        []string{"stories", "camera", "filters", "effects"},
				Author:      "stories_dev",
				DateAdded:   "2025-07-20",
				FlagName:    ptr("ig_android_stories_camera_v2"),
				Options: entity.FlagOption{
					IsEnabled:                  true,
					EditMedia:                  true,
					FavoriteMedia:              true,
					IsRedesignedPreviewEnabled: true,
				},
			},
		},
	},
	{
		Name: "reels",
		Path: "reels",
		Icon: "Play",
		Flags: []entity.Flag{
			{
				ID:          "98765",
				Title:       "Reels Player Optimization",
				Description: "Optimized video player for Instagram Reels with better performance and quality.",
				Source:      "https://instafel.app/library/flag/view?id=98765",
				Tags:        []string{"reels", "video", "player", "optimization"},
				Author:      "reels_team",
				DateAdded:   "2025-07-21",
				FlagName:    ptr("ig_android_reels_player_v3"),
				Options: entity.FlagOption{
					IsEnabled:                  true,
					EditMedia:                  true,
					IsRedesignedPreviewEnabled: true,
				},
			},
		},
	},
}

func ptr(s string) *string {
	return &s
}
