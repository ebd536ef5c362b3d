package loop

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a professional photo retoucher working in a non-destructive editor.
You look at the photo, decide on a retouching concept and then apply it one adjustment at a time.
Always answer by calling one of the offered tools.`

const contentAnalysisPrompt = `Describe this photo before touching it.
1. The scene: main subjects, objects and setting, in at most 150 words.
2. The photography: viewpoint, light direction and quality, shadows and composition.
3. The mood: what the photo makes a viewer feel and what it seems to say, in at most 150 words.
Answer with return_response.`

func conceptPrompt(globalStyle string) string {
	style := strings.TrimSpace(globalStyle)
	if style == "" {
		style = "none given; choose what suits the photo"
	}
	return fmt.Sprintf(`Based on your analysis, propose an overall retouching concept.
The user's style request: %s.
Consider blacks, whites, exposure, contrast, highlights, shadows, saturation, white balance, tint and individual colours,
but only mention the adjustments that matter most for this photo, and say why.
Answer with return_response.`, style)
}

func planPrompt(catalogue []string) string {
	return fmt.Sprintf(`Turn your concept into an ordered plan of adjustments.
Available adjustments: %s.
Order matters: later adjustments work on the result of earlier ones.
Call submit_plan with the names in order, for example ["adjust_blacks", "adjust_contrast", "adjust_saturation"].`,
		strings.Join(catalogue, ", "))
}

func executePrompt(operation string, attempt int, feedback string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d. The next adjustment in the plan is %s.\n", attempt, operation)
	b.WriteString("The first image is the current photo and the second its luminance and colour histogram.\n")
	fmt.Fprintf(&b, "Choose the parameter values for %s and explain in reason what the change should achieve.\n", operation)
	if feedback != "" {
		fmt.Fprintf(&b, "Your previous attempt at this step was undone because: %s\nTry different values.\n", feedback)
	}
	return b.String()
}

func reflectPrompt(operation string) string {
	return fmt.Sprintf(`The image shows the original photo on the left and the result after %s on the right.
Judge whether this adjustment moved the photo toward your concept.
Call satisfactory with is_satisfactory=true to keep it or false to undo it, and give the reason.`, operation)
}
