package pipeline

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"promoreel/internal/domain"
	"promoreel/internal/generation"
)

// variantCopy is the per-variant wording used across prompts.
type variantCopy struct {
	role       string
	subject    string
	focus      string
	middle     string
	longBeats  string
	cta        string
	frameScene string
}

var variantCopies = map[domain.Variant]variantCopy{
	domain.VariantApp: {
		role:       "You are a mobile marketing expert.",
		subject:    "%s app named %q",
		focus:      "Maintain consistent characters, voice, and narrative arc throughout all scenes.",
		middle:     "Feature/Interaction. Define the button labels or data points.",
		longBeats:  "Scene 3: Benefit/Expansion. Define the benefit text.\n- Scene 4: Resolution/CTA.",
		cta:        `"Download Now" or "Start [Benefit]"`,
		frameScene: "Show the app interface on a modern smartphone screen clearly.",
	},
	domain.VariantProduct: {
		role:       "You are an e-commerce video marketing expert.",
		subject:    "product named %[2]q (%[1]s)",
		focus:      "Focus on showcasing the physical product, its features, and benefits.",
		middle:     "Feature/Benefit. Show the product in action or detail. Define data point or benefit text.",
		longBeats:  "Scene 3: Social Proof/Lifestyle. Show someone using it or a testimonial quote.\n- Scene 4: Offer/CTA.",
		cta:        `"Shop Now" or "Get Yours"`,
		frameScene: "Show the product itself as the hero of the shot, accurately matching the reference photo.",
	},
	domain.VariantService: {
		role:       "You are a service business marketing expert.",
		subject:    "%s business named %q",
		focus:      "Show the human side of the service and the result it delivers to clients.",
		middle:     "Solution/Process. Show the service in action or the immediate result.",
		longBeats:  "Scene 3: Trust/Testimonial. Show a happy client or credential.\n- Scene 4: Offer/CTA.",
		cta:        `"Book Now", "Call Us", or "Learn More"`,
		frameScene: "Show the service being delivered in a realistic, well-lit environment.",
	},
}

func copyFor(v domain.Variant) variantCopy {
	if c, ok := variantCopies[v]; ok {
		return c
	}
	return variantCopies[domain.VariantApp]
}

func subjectLine(b domain.BrandBrief) string {
	kind := b.SubjectKind
	if kind == "" {
		kind = "general"
	}
	return fmt.Sprintf(copyFor(b.Variant).subject, cases.Title(language.English).String(kind), b.SubjectName)
}

func durationLine(d domain.Duration) string {
	if d == domain.DurationLong {
		return "30 seconds (4 scenes)"
	}
	return "15 seconds (2 scenes)"
}

// buildScriptPrompt asks for count concepts in one call.
func buildScriptPrompt(b domain.BrandBrief, count int) string {
	c := copyFor(b.Variant)
	scenes := b.Duration.SceneCount()
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "%s Create %d distinct visual concepts for a %s.\n", c.role, count, subjectLine(b))
	fmt.Fprintf(sb, "Key Selling Point: %q.\nTone: %s.\n", b.SellingPoint, b.Tone)
	fmt.Fprintf(sb, "The video will be %s long.\n%s\n\n", durationLine(b.Duration), c.focus)
	fmt.Fprintf(sb, "For each concept, provide:\n1. A short description of the visual style.\n2. A visual script describing the ON-SCREEN ACTION for exactly %d scenes.\n\n", scenes)
	sb.WriteString("CRITICAL INSTRUCTION FOR TEXT:\n")
	sb.WriteString("- Specify EXACT meaningful text that appears on screen. Do not say \"text appears\".\n")
	fmt.Fprintf(sb, "- Use keywords from the Selling Point (%q) in headlines, labels and data points.\n", b.SellingPoint)
	fmt.Fprintf(sb, "- All on-screen text must be correctly spelled and written in the language of locale %q.\n\n", b.Locale)
	sb.WriteString("Structure:\n- Scene 1: Hook. Define the exact headline text on screen.\n")
	fmt.Fprintf(sb, "- Scene 2: %s\n", c.middle)
	if scenes == 4 {
		fmt.Fprintf(sb, "- %s\n", c.longBeats)
	}
	fmt.Fprintf(sb, "- The final scene (Scene %d) must end with the logo and a clear CTA like %s.\n", scenes, c.cta)
	return sb.String()
}

// conceptSchema constrains the script response to {"concepts":[...]}, each
// item carrying exactly one sceneN field per scene.
func conceptSchema(scenes, count int) *generation.Schema {
	script := &generation.Schema{Type: generation.TypeObject}
	for i := 0; i < scenes; i++ {
		key := domain.SceneKey(i)
		script.Properties = append(script.Properties, generation.Property{Name: key, Schema: &generation.Schema{Type: generation.TypeString}})
		script.Required = append(script.Required, key)
	}
	return &generation.Schema{
		Type: generation.TypeObject,
		Properties: []generation.Property{{
			Name: "concepts",
			Schema: &generation.Schema{
				Type:     generation.TypeArray,
				MinItems: count,
				MaxItems: count,
				Items: &generation.Schema{
					Type: generation.TypeObject,
					Properties: []generation.Property{
						{Name: "id", Schema: &generation.Schema{Type: generation.TypeString}},
						{Name: "description", Schema: &generation.Schema{Type: generation.TypeString, Description: "Visual style of the concept"}},
						{Name: "script", Schema: script},
					},
					Required: []string{"description", "script"},
				},
			},
		}},
		Required: []string{"concepts"},
	}
}

func buildStartFramePrompt(b domain.BrandBrief, description, firstBeat string) string {
	c := copyFor(b.Variant)
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Generate a photorealistic Start Frame for a video ad for a %s.\n", subjectLine(b))
	fmt.Fprintf(sb, "Style: %s, %s.\nAction: %s.\n", b.Tone, description, firstBeat)
	if b.ThemeColor != "" {
		fmt.Fprintf(sb, "Color Theme: %s.\n", b.ThemeColor)
	}
	sb.WriteString("\nCRITICAL TEXT INSTRUCTIONS:\n")
	fmt.Fprintf(sb, "- %s\n", c.frameScene)
	fmt.Fprintf(sb, "- Visible text MUST reflect the Key Selling Point: %q.\n", b.SellingPoint)
	sb.WriteString("- Any visible text must be meaningful and legible. No placeholder or gibberish text.\n")
	sb.WriteString("- High quality, professional photography.\n")
	return sb.String()
}

func buildEndFramePrompt(b domain.BrandBrief, lastBeat string) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Generate a photorealistic End Frame for a video ad for a %s.\n", subjectLine(b))
	fmt.Fprintf(sb, "Style: %s, consistent with the provided start frame.\nAction: %s.\n", b.Tone, lastBeat)
	if b.ThemeColor != "" {
		fmt.Fprintf(sb, "Color Theme: %s.\n", b.ThemeColor)
	}
	sb.WriteString("\nCRITICAL TEXT INSTRUCTIONS:\n")
	sb.WriteString("- A clear, legible Call to Action.\n")
	fmt.Fprintf(sb, "- Use words related to %q.\n", b.SellingPoint)
	fmt.Fprintf(sb, "- The name %q must be spelled correctly if shown.\n", b.SubjectName)
	sb.WriteString("- Minimal text, high contrast, professional.\n")
	return sb.String()
}

// sceneWindow is the nominal length of one generated video step.
const sceneWindow = 8

func buildScenePrompt(b domain.BrandBrief, c domain.Concept, index int) string {
	sb := &strings.Builder{}
	fmt.Fprintf(sb, "Scene %d (%d-%ds): Promotional video for %s.\n", index+1, index*sceneWindow, (index+1)*sceneWindow, b.SubjectName)
	fmt.Fprintf(sb, "Action: %s\n", c.Script.Beat(index))
	fmt.Fprintf(sb, "Style: %s, %s, consistent character and environment.\n", c.Description, b.Tone)
	fmt.Fprintf(sb, "Marketing Focus: %s.\n\n", b.SellingPoint)
	sb.WriteString("CRITICAL TEXT INSTRUCTION:\n")
	sb.WriteString("- Maintain legibility of any text visible in the input.\n")
	fmt.Fprintf(sb, "- New text overlays must be meaningful words derived from the Selling Point (%q).\n", b.SellingPoint)
	return sb.String()
}

// referenceParts returns the logo and the first reference image, in that
// order, as inline prompt parts.
func referenceParts(b domain.BrandBrief) []generation.Part {
	var parts []generation.Part
	if b.Logo != nil && !b.Logo.Empty() {
		parts = append(parts, generation.ImagePart(*b.Logo))
	}
	if len(b.References) > 0 && !b.References[0].Empty() {
		parts = append(parts, generation.ImagePart(b.References[0]))
	}
	return parts
}
