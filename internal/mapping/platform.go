// Package mapping holds the small, static lookup tables the rest of the
// system formats against: platform/client-type/product ids, event-type role
// semantics, and reason-code descriptions (spec §6.2, §6.3).
package mapping

// Platform ids, stable per the provider's wire contract (spec §6.3).
const (
	PlatformOther   = 0
	PlatformAndroid = 1
	PlatformIOS     = 2
	PlatformWindows = 5
	PlatformLinux   = 6
	PlatformWeb     = 7
	PlatformMacOS   = 8
)

var platformNames = map[int]string{
	PlatformOther:   "Other",
	PlatformAndroid: "Android",
	PlatformIOS:     "iOS",
	PlatformWindows: "Windows",
	PlatformLinux:   "Linux",
	PlatformWeb:     "Web",
	PlatformMacOS:   "macOS",
}

// Client-type ids, only meaningful when platform == PlatformLinux (spec §6.3).
const (
	ClientTypeLocalRecording = 3
	ClientTypeApplets        = 8
	ClientTypeCloudRecording = 10
)

var clientTypeNames = map[int]string{
	ClientTypeLocalRecording: "Local server recording",
	ClientTypeApplets:        "Applets",
	ClientTypeCloudRecording: "Cloud recording",
}

// PlatformName returns the human-readable platform name, or "Unknown" for an
// unrecognized id.
func PlatformName(platformID int) string {
	if name, ok := platformNames[platformID]; ok {
		return name
	}
	return "Unknown"
}

// ClientTypeName returns the human-readable client-type name, or "" when the
// id is unset or unrecognized (callers should treat "" as "no client type").
func ClientTypeName(clientTypeID int) string {
	return clientTypeNames[clientTypeID]
}

// FormatPlatform combines platform and client-type the way the read API
// renders them: "Linux (Cloud recording)" when both are present, else just
// the platform name (spec §6.3).
func FormatPlatform(platformID int, clientTypeID *int) string {
	name := PlatformName(platformID)
	if platformID != PlatformLinux || clientTypeID == nil {
		return name
	}
	if ct := ClientTypeName(*clientTypeID); ct != "" {
		return name + " (" + ct + ")"
	}
	return name
}
