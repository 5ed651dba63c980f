package domain

import "slices"

// Platform is one entry in the fixed platform table.
type Platform struct {
	Name     string   `json:"name"`
	Segments []string `json:"segments"`
}

// Platforms is the static platform → segment table, in display order.
var Platforms = []Platform{
	{Name: "Advisory", Segments: []string{"Advisory", "MEAC", "FSA", "WMB", "MLSN", "MFSA"}},
	{Name: "Private Bank", Segments: []string{}},
	{Name: "GWIM Call Center", Segments: []string{"RBCC", "WMCS", "WMBS"}},
	{Name: "Consumer Contact Center", Segments: []string{"Home Loans", "EricaAssist", "Sales", "Outbound", "Servicing", "Fraud", "Chat"}},
	{Name: "Consumer Financial Center", Segments: []string{}},
}

// KnownPlatform reports whether name is in the platform table.
func KnownPlatform(name string) bool {
	return slices.ContainsFunc(Platforms, func(p Platform) bool { return p.Name == name })
}

// SegmentsFor returns the segments allowed under platform, or nil for an
// unknown platform.
func SegmentsFor(platform string) []string {
	i := slices.IndexFunc(Platforms, func(p Platform) bool { return p.Name == platform })
	if i < 0 {
		return nil
	}
	return slices.Clone(Platforms[i].Segments)
}

// ValidSegment reports whether segment may be used with platform.
// An empty segment is always valid. Unknown platforms accept any segment,
// since collaborators may carry platforms this table does not know.
func ValidSegment(platform, segment string) bool {
	if segment == "" || !KnownPlatform(platform) {
		return true
	}
	return slices.Contains(SegmentsFor(platform), segment)
}
