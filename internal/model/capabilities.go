package model

// ModelResolutions lists the sizes each model can render, in display order.
var ModelResolutions = map[string][]string{
	ModelSora2:    {SizePortrait, SizeLandscape},
	ModelSora2Pro: {SizePortrait, SizeLandscape, SizeTallPortrait, SizeWideLandscape},
}

// AllResolutions is the union of ModelResolutions in display order.
var AllResolutions = []string{SizePortrait, SizeLandscape, SizeTallPortrait, SizeWideLandscape}

func resolutionsFor(model string) []string {
	if allowed, ok := ModelResolutions[model]; ok {
		return allowed
	}
	return AllResolutions
}

// SupportsResolution reports whether model can render size.
func SupportsResolution(model, size string) bool {
	for _, r := range resolutionsFor(model) {
		if r == size {
			return true
		}
	}
	return false
}

// ClampResolution returns size when model supports it, otherwise the
// model's first resolution.
func ClampResolution(model, size string) string {
	allowed := resolutionsFor(model)
	for _, r := range allowed {
		if r == size {
			return size
		}
	}
	if len(allowed) == 0 {
		return size
	}
	return allowed[0]
}

// NextResolution cycles to the resolution after current for model.
func NextResolution(model, current string) string {
	allowed := resolutionsFor(model)
	if len(allowed) == 0 {
		return current
	}
	for i, r := range allowed {
		if r == current {
			return allowed[(i+1)%len(allowed)]
		}
	}
	return allowed[0]
}
