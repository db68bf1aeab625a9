package domain

import (
	"strings"
)

// Tone enumerates the supported creative tones.
type Tone string

const (
	ToneProfessional Tone = "Professional"
	ToneEnergetic    Tone = "Energetic"
	ToneMinimalist   Tone = "Minimalist"
	ToneDramatic     Tone = "Dramatic"
)

var tones = []Tone{ToneProfessional, ToneEnergetic, ToneMinimalist, ToneDramatic}

// Variant selects which family of prompts describes the subject.
type Variant string

const (
	VariantApp     Variant = "app"
	VariantProduct Variant = "product"
	VariantService Variant = "service"
)

// Duration is the requested video length class.
type Duration string

const (
	DurationShort Duration = "15s"
	DurationLong  Duration = "30s"
)

// SceneCount returns the number of scenes the duration class requires, or 0
// for an unknown class.
func (d Duration) SceneCount() int {
	switch d {
	case DurationShort:
		return 2
	case DurationLong:
		return 4
	default:
		return 0
	}
}

const (
	AspectPortrait  = "9:16"
	AspectLandscape = "16:9"
	AspectSquare    = "1:1"
	AspectCustom    = "Custom"
)

// BrandBrief is the user-supplied description of what to promote. It is
// passed by value and never mutated once a run starts.
type BrandBrief struct {
	SubjectName  string
	SubjectKind  string
	Variant      Variant
	SellingPoint string
	Tone         Tone
	ThemeColor   string
	Logo         *Artifact
	References   []Artifact
	AspectRatio  string
	CustomWidth  int
	CustomHeight int
	Duration     Duration
	Locale       string
}

// Normalize trims free text and fills defaults.
func (b BrandBrief) Normalize() BrandBrief {
	b.SubjectName = strings.TrimSpace(b.SubjectName)
	b.SubjectKind = strings.TrimSpace(b.SubjectKind)
	b.SellingPoint = strings.TrimSpace(b.SellingPoint)
	b.ThemeColor = strings.TrimSpace(b.ThemeColor)
	b.AspectRatio = strings.TrimSpace(b.AspectRatio)
	b.Duration = Duration(strings.TrimSpace(string(b.Duration)))
	b.Locale = strings.ToLower(strings.TrimSpace(b.Locale))
	if b.Locale == "" {
		b.Locale = "en"
	}
	switch Variant(strings.ToLower(strings.TrimSpace(string(b.Variant)))) {
	case VariantProduct:
		b.Variant = VariantProduct
	case VariantService:
		b.Variant = VariantService
	default:
		b.Variant = VariantApp
	}
	for _, t := range tones {
		if strings.EqualFold(strings.TrimSpace(string(b.Tone)), string(t)) {
			b.Tone = t
			break
		}
	}
	if strings.EqualFold(b.AspectRatio, AspectCustom) {
		b.AspectRatio = AspectCustom
	}
	return b
}

// Validate returns an *InputError describing the first missing or invalid
// field.
func (b BrandBrief) Validate() error {
	if b.SubjectName == "" {
		return &InputError{Field: "name", Reason: "is required"}
	}
	if b.SellingPoint == "" {
		return &InputError{Field: "selling_point", Reason: "is required"}
	}
	if !b.Tone.valid() {
		return &InputError{Field: "tone", Reason: "must be one of Professional, Energetic, Minimalist, Dramatic"}
	}
	if b.Duration.SceneCount() == 0 {
		return &InputError{Field: "duration", Reason: "must be 15s or 30s"}
	}
	if b.AspectRatio == AspectCustom && (b.CustomWidth <= 0 || b.CustomHeight <= 0) {
		return &InputError{Field: "custom_size", Reason: "width and height are required for Custom"}
	}
	return nil
}

func (t Tone) valid() bool {
	for _, v := range tones {
		if t == v {
			return true
		}
	}
	return false
}

// ImageAspectRatio maps the requested ratio onto one the image backend
// accepts. Custom sizes snap to the nearest portrait, square or landscape
// ratio.
func (b BrandBrief) ImageAspectRatio() string {
	switch b.AspectRatio {
	case AspectPortrait, AspectLandscape, AspectSquare:
		return b.AspectRatio
	}
	if b.CustomWidth > 0 && b.CustomHeight > 0 {
		ratio := float64(b.CustomWidth) / float64(b.CustomHeight)
		switch {
		case ratio <= 0.6:
			return "9:16"
		case ratio <= 0.85:
			return "3:4"
		case ratio <= 1.15:
			return "1:1"
		case ratio <= 1.5:
			return "4:3"
		default:
			return "16:9"
		}
	}
	return AspectSquare
}

// VideoAspectRatio maps the requested ratio onto 16:9 or 9:16, the only
// ratios the video backend supports.
func (b BrandBrief) VideoAspectRatio() string {
	switch b.AspectRatio {
	case AspectLandscape, AspectPortrait:
		return b.AspectRatio
	case AspectCustom:
		if b.CustomWidth > 0 && b.CustomHeight > 0 && b.CustomWidth > b.CustomHeight {
			return AspectLandscape
		}
	}
	return AspectPortrait
}
