package icons

import (
	"fmt"

	"github.com/kass/civicmap/pkg/models"
)

// glyph paths are 24×24 stroke outlines
var (
	glyphCar          = `<path d="M19 17h2v-5l-2-5H5L3 12v5h2"/><circle cx="7" cy="17" r="2"/><circle cx="17" cy="17" r="2"/>`
	glyphDroplets     = `<path d="M12 22a7 7 0 0 0 7-7c0-2-1-3.9-3-5.5S12.5 5.5 12 3c-.5 2.5-2 4.9-4 6.5S5 13 5 15a7 7 0 0 0 7 7z"/>`
	glyphZap          = `<path d="M13 2 3 14h9l-1 8 10-12h-9l1-8z"/>`
	glyphGradCap      = `<path d="M22 10 12 5 2 10l10 5 10-5z"/><path d="M6 12v5c3 3 9 3 12 0v-5"/>`
	glyphStethoscope  = `<path d="M5 3v6a5 5 0 0 0 10 0V3"/><path d="M10 14v2a6 6 0 0 0 12 0v-4"/><circle cx="22" cy="10" r="2"/>`
	glyphTrash        = `<path d="M3 6h18"/><path d="M19 6v14H5V6"/><path d="M8 6V4h8v2"/>`
	glyphHelp         = `<circle cx="12" cy="12" r="10"/><path d="M9.1 9a3 3 0 0 1 5.8 1c0 2-3 3-3 3"/><path d="M12 17h.01"/>`
	glyphSchool       = `<path d="M14 22v-4a2 2 0 1 0-4 0v4"/><path d="m4 10 8-6 8 6"/><path d="M4 10v12h16V10"/>`
	glyphHospital     = `<path d="M12 6v4"/><path d="M14 14h-4"/><path d="M14 8h-4"/><path d="M18 22V4H6v18"/>`
	glyphBuilding     = `<rect x="4" y="2" width="16" height="20" rx="2"/><path d="M9 22v-4h6v4"/><path d="M8 6h.01M16 6h.01M8 10h.01M16 10h.01M8 14h.01M16 14h.01"/>`
	glyphConstruction = `<rect x="2" y="6" width="20" height="8" rx="1"/><path d="M17 14v7"/><path d="M7 14v7"/><path d="M17 3v3"/><path d="M7 3v3"/>`
	glyphWaves        = `<path d="M2 6c2 0 2 2 5 2s3-2 5-2 2 2 5 2 3-2 5-2"/><path d="M2 12c2 0 2 2 5 2s3-2 5-2 2 2 5 2 3-2 5-2"/><path d="M2 18c2 0 2 2 5 2s3-2 5-2 2 2 5 2 3-2 5-2"/>`
)

var categoryColors = map[models.Category]string{
	models.CategoryRoads:       "#ef4444",
	models.CategoryWater:       "#3b82f6",
	models.CategoryElectricity: "#eab308",
	models.CategoryEducation:   "#10b981",
	models.CategoryHealth:      "#ec4899",
	models.CategoryWaste:       "#8b5cf6",
	models.CategoryOther:       "#64748b",
}

const fallbackColor = "#64748b"

// CategoryColor returns the marker color for an issue category
func CategoryColor(c models.Category) string {
	if color, ok := categoryColors[c]; ok {
		return color
	}
	return fallbackColor
}

// OrganizationColor returns the marker color for an organization type
func OrganizationColor(t models.Category) string {
	switch t {
	case models.CategoryEducation:
		return "#10b981"
	case models.CategoryHealth:
		return "#ef4444"
	default:
		return "#4f46e5"
	}
}

// InfrastructureColor returns the marker color for an infrastructure type
func InfrastructureColor(t string) string {
	switch t {
	case models.InfraRoads:
		return "#f59e0b"
	case models.InfraWater:
		return "#06b6d4"
	default:
		return "#6366f1"
	}
}

func categoryGlyph(c models.Category) string {
	switch c {
	case models.CategoryRoads:
		return glyphCar
	case models.CategoryWater:
		return glyphDroplets
	case models.CategoryElectricity:
		return glyphZap
	case models.CategoryEducation:
		return glyphGradCap
	case models.CategoryHealth:
		return glyphStethoscope
	case models.CategoryWaste:
		return glyphTrash
	default:
		return glyphHelp
	}
}

func organizationGlyph(t models.Category) string {
	switch t {
	case models.CategoryEducation:
		return glyphSchool
	case models.CategoryHealth:
		return glyphHospital
	default:
		return glyphBuilding
	}
}

func infrastructureGlyph(t string) string {
	switch t {
	case models.InfraRoads:
		return glyphConstruction
	case models.InfraWater:
		return glyphWaves
	default:
		return glyphBuilding
	}
}

func svg(paths string, size int) string {
	return fmt.Sprintf(`<svg width="%d" height="%d" viewBox="0 0 24 24" fill="none" stroke="white" stroke-width="2.5" stroke-linecap="round" stroke-linejoin="round">%s</svg>`, size, size, paths)
}
