package wizard

import (
	"fmt"
	"strings"
)

// SummaryItem identifies one row of the post-load summary shown to the user.
type SummaryItem string

const (
	SIFilename   SummaryItem = "filename"
	SIDims       SummaryItem = "dimensions"
	SISpacing    SummaryItem = "spacing"
	SIOrigin     SummaryItem = "origin"
	SIOrient     SummaryItem = "orientation"
	SIEndian     SummaryItem = "byte_order"
	SIComponents SummaryItem = "components"
	SIDataType   SummaryItem = "data_type"
	SIFileSize   SummaryItem = "file_size"
)

// SummaryItems lists all items in presentation order.
func SummaryItems() []SummaryItem {
	return []SummaryItem{
		SIFilename, SIDims, SISpacing, SIOrigin, SIOrient,
		SIEndian, SIComponents, SIDataType, SIFileSize,
	}
}

// SummaryItem renders one summary row for the loaded image, or "" when no
// image is loaded.
func (m *Model) SummaryItem(item SummaryItem) string {
	if m.image == nil {
		return ""
	}
	meta := m.image.Meta
	switch item {
	case SIFilename:
		return meta.FileName
	case SIDims:
		return fmt.Sprintf("%d x %d x %d", meta.Dims[0], meta.Dims[1], meta.Dims[2])
	case SISpacing:
		return trimFloats(meta.Spacing)
	case SIOrigin:
		return trimFloats(meta.Origin)
	case SIOrient:
		return meta.Orientation
	case SIEndian:
		return meta.ByteOrder
	case SIComponents:
		return fmt.Sprintf("%d", meta.Components)
	case SIDataType:
		return meta.ComponentType
	case SIFileSize:
		return formatBytes(meta.FileSizeBytes)
	}
	return ""
}

func trimFloats(v [3]float64) string {
	parts := make([]string, 3)
	for i, f := range v {
		parts[i] = trimFloat(f)
	}
	return strings.Join(parts, " x ")
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.4f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.2f GiB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
