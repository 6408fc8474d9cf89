package domain

import (
	"fmt"
	"strings"
)

// ProcessType enumerates the supported post-process operations.
type ProcessType string

const (
	ProcessObjectDelete        ProcessType = "object-delete"
	ProcessBackgroundChange    ProcessType = "background-change"
	ProcessBackgroundRemove    ProcessType = "background-remove"
	ProcessBackgroundColor     ProcessType = "background-color"
	ProcessModelChange         ProcessType = "model-change"
	ProcessNoiseFix            ProcessType = "noise-fix"
	ProcessUpscale             ProcessType = "upscale"
	ProcessRotate              ProcessType = "rotate"
	ProcessPerspectiveFix      ProcessType = "perspective-fix"
	ProcessColorGrade          ProcessType = "color-grade"
	ProcessBrightnessContrast  ProcessType = "brightness-contrast"
	ProcessSaturation          ProcessType = "saturation"
	ProcessSharpen             ProcessType = "sharpen"
	ProcessBlurBackground      ProcessType = "blur-background"
	ProcessFaceEnhance         ProcessType = "face-enhance"
	ProcessSkinSmooth          ProcessType = "skin-smooth"
	ProcessEyeEnhance          ProcessType = "eye-enhance"
	ProcessTeethWhiten         ProcessType = "teeth-whiten"
	ProcessMakeupApply         ProcessType = "makeup-apply"
	ProcessHairColor           ProcessType = "hair-color"
	ProcessBodyReshape         ProcessType = "body-reshape"
	ProcessClothingChange      ProcessType = "clothing-change"
	ProcessStyleTransfer       ProcessType = "style-transfer"
	ProcessAgeModify           ProcessType = "age-modify"
	ProcessGenderSwap          ProcessType = "gender-swap"
	ProcessLightingAdjust      ProcessType = "lighting-adjust"
	ProcessShadowRemove        ProcessType = "shadow-remove"
	ProcessReflectionAdd       ProcessType = "reflection-add"
	ProcessWatermarkRemove     ProcessType = "watermark-remove"
	ProcessTextAdd             ProcessType = "text-add"
	ProcessLogoAdd             ProcessType = "logo-add"
	ProcessBorderAdd           ProcessType = "border-add"
	ProcessCropSmart           ProcessType = "crop-smart"
	ProcessResolutionEnhance   ProcessType = "resolution-enhance"
	ProcessDenoiseAdvanced     ProcessType = "denoise-advanced"
	ProcessHDREnhance          ProcessType = "hdr-enhance"
	ProcessColorPop            ProcessType = "color-pop"
	ProcessVintageEffect       ProcessType = "vintage-effect"
	ProcessBlackWhite          ProcessType = "black-white"
	ProcessSepia               ProcessType = "sepia"
	ProcessFilmGrain           ProcessType = "film-grain"
	ProcessVignette            ProcessType = "vignette"
	ProcessLensCorrection      ProcessType = "lens-correction"
	ProcessChromaticAberration ProcessType = "chromatic-aberration"
	ProcessSuperResolution     ProcessType = "super-resolution"
	ProcessRestoreOldPhoto     ProcessType = "restore-old-photo"
)

// ProcessCategory groups related operations for the catalog endpoint.
type ProcessCategory string

const (
	CategoryBasic        ProcessCategory = "BASIC"
	CategoryEnhancement  ProcessCategory = "ENHANCEMENT"
	CategoryPortrait     ProcessCategory = "PORTRAIT"
	CategoryBody         ProcessCategory = "BODY"
	CategoryArtistic     ProcessCategory = "ARTISTIC"
	CategoryLighting     ProcessCategory = "LIGHTING"
	CategoryProfessional ProcessCategory = "PROFESSIONAL"
	CategoryBranding     ProcessCategory = "BRANDING"
	CategoryRestoration  ProcessCategory = "RESTORATION"
)

// ProcessInfo describes an operation for callers: display name, grouping and
// the parameter contract validated at the HTTP boundary.
type ProcessInfo struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Category       ProcessCategory `json:"category"`
	EstimatedTime  string          `json:"estimated_time"`
	RequiredParams []string        `json:"required_params,omitempty"`
	OptionalParams []string        `json:"optional_params,omitempty"`
}

// ProcessCatalog maps every supported operation to its descriptor. Membership
// in this map is what makes a process type valid at the API boundary; the
// graph compiler itself stays total and falls back for anything unmapped.
var ProcessCatalog = map[ProcessType]ProcessInfo{
	ProcessObjectDelete:        {Name: "Object Delete", Description: "Removes unwanted objects via inpainting", Category: CategoryBasic, EstimatedTime: "20-40s", RequiredParams: []string{"prompt"}, OptionalParams: []string{"negativePrompt", "seed"}},
	ProcessBackgroundChange:    {Name: "Background Change", Description: "Replaces the background with a generated scene", Category: CategoryBasic, EstimatedTime: "25-45s", RequiredParams: []string{"prompt"}, OptionalParams: []string{"negativePrompt", "seed"}},
	ProcessBackgroundRemove:    {Name: "Background Remove", Description: "Makes the background fully transparent", Category: CategoryBasic, EstimatedTime: "5-10s"},
	ProcessBackgroundColor:     {Name: "Background Color", Description: "Replaces the background with a solid color", Category: CategoryBasic, EstimatedTime: "8-15s", RequiredParams: []string{"backgroundColor"}},
	ProcessModelChange:         {Name: "Model Change", Description: "Re-renders the image with a different checkpoint", Category: CategoryBasic, EstimatedTime: "20-50s", OptionalParams: []string{"prompt", "modelName", "seed"}},
	ProcessNoiseFix:            {Name: "Noise Fix", Description: "Cleans noise and improves overall quality", Category: CategoryEnhancement, EstimatedTime: "15-25s", OptionalParams: []string{"seed"}},
	ProcessUpscale:             {Name: "Upscale", Description: "Increases resolution with an upscale model", Category: CategoryEnhancement, EstimatedTime: "10-30s", OptionalParams: []string{"upscaleModel"}},
	ProcessRotate:              {Name: "Rotate", Description: "Rotates the image by a given angle", Category: CategoryBasic, EstimatedTime: "2-5s", RequiredParams: []string{"rotationAngle"}},
	ProcessPerspectiveFix:      {Name: "Perspective Fix", Description: "Straightens skewed angles", Category: CategoryProfessional, EstimatedTime: "10-20s", OptionalParams: []string{"perspectivePoints"}},
	ProcessColorGrade:          {Name: "Color Grade", Description: "Professional color grading pass", Category: CategoryProfessional, EstimatedTime: "15-25s", OptionalParams: []string{"brightness", "contrast", "saturation"}},
	ProcessBrightnessContrast:  {Name: "Brightness/Contrast", Description: "Adjusts brightness and contrast", Category: CategoryEnhancement, EstimatedTime: "5-10s", OptionalParams: []string{"brightness", "contrast"}},
	ProcessSaturation:          {Name: "Saturation", Description: "Adjusts color saturation", Category: CategoryEnhancement, EstimatedTime: "5-10s", RequiredParams: []string{"saturation"}},
	ProcessSharpen:             {Name: "Sharpen", Description: "Sharpens the image", Category: CategoryEnhancement, EstimatedTime: "5-10s", OptionalParams: []string{"sharpness"}},
	ProcessBlurBackground:      {Name: "Blur Background", Description: "Bokeh effect on the background", Category: CategoryLighting, EstimatedTime: "15-25s", OptionalParams: []string{"blurStrength"}},
	ProcessFaceEnhance:         {Name: "Face Enhance", Description: "Restores and enhances facial detail", Category: CategoryPortrait, EstimatedTime: "20-35s", OptionalParams: []string{"faceEnhanceStrength"}},
	ProcessSkinSmooth:          {Name: "Skin Smooth", Description: "Smooths skin texture", Category: CategoryPortrait, EstimatedTime: "15-25s", OptionalParams: []string{"skinSmoothLevel"}},
	ProcessEyeEnhance:          {Name: "Eye Enhance", Description: "Brightens and details eyes", Category: CategoryPortrait, EstimatedTime: "15-25s"},
	ProcessTeethWhiten:         {Name: "Teeth Whiten", Description: "Whitens teeth", Category: CategoryPortrait, EstimatedTime: "10-20s", OptionalParams: []string{"teethWhitenLevel"}},
	ProcessMakeupApply:         {Name: "Makeup Apply", Description: "Applies AI makeup", Category: CategoryPortrait, EstimatedTime: "25-40s", OptionalParams: []string{"makeupStyle"}},
	ProcessHairColor:           {Name: "Hair Color", Description: "Changes hair color", Category: CategoryPortrait, EstimatedTime: "20-35s", RequiredParams: []string{"hairColor"}},
	ProcessBodyReshape:         {Name: "Body Reshape", Description: "Adjusts body proportions", Category: CategoryBody, EstimatedTime: "25-40s", OptionalParams: []string{"bodyReshape"}},
	ProcessClothingChange:      {Name: "Clothing Change", Description: "Replaces clothing via generation", Category: CategoryBody, EstimatedTime: "40-70s", RequiredParams: []string{"prompt"}},
	ProcessStyleTransfer:       {Name: "Style Transfer", Description: "Applies an artistic style", Category: CategoryArtistic, EstimatedTime: "30-50s", OptionalParams: []string{"styleReference", "prompt"}},
	ProcessAgeModify:           {Name: "Age Modify", Description: "Shifts apparent age", Category: CategoryPortrait, EstimatedTime: "30-50s", RequiredParams: []string{"ageModify"}},
	ProcessGenderSwap:          {Name: "Gender Swap", Description: "AI gender transformation", Category: CategoryPortrait, EstimatedTime: "35-60s"},
	ProcessLightingAdjust:      {Name: "Lighting Adjust", Description: "Adjusts light direction and intensity", Category: CategoryLighting, EstimatedTime: "20-35s", OptionalParams: []string{"lightingDirection"}},
	ProcessShadowRemove:        {Name: "Shadow Remove", Description: "Removes unwanted shadows", Category: CategoryLighting, EstimatedTime: "20-35s"},
	ProcessReflectionAdd:       {Name: "Reflection Add", Description: "Adds a product-style reflection", Category: CategoryLighting, EstimatedTime: "15-25s"},
	ProcessWatermarkRemove:     {Name: "Watermark Remove", Description: "Removes watermarks", Category: CategoryProfessional, EstimatedTime: "20-40s"},
	ProcessTextAdd:             {Name: "Text Add", Description: "Renders text onto the image", Category: CategoryBranding, EstimatedTime: "5-10s", RequiredParams: []string{"textContent"}, OptionalParams: []string{"textPosition", "textStyle"}},
	ProcessLogoAdd:             {Name: "Logo Add", Description: "Composites a logo onto the image", Category: CategoryBranding, EstimatedTime: "8-15s", RequiredParams: []string{"logoUrl"}, OptionalParams: []string{"logoPosition"}},
	ProcessBorderAdd:           {Name: "Border Add", Description: "Adds a frame", Category: CategoryBranding, EstimatedTime: "5-10s", OptionalParams: []string{"borderWidth", "borderColor"}},
	ProcessCropSmart:           {Name: "Smart Crop", Description: "AI-assisted cropping", Category: CategoryBasic, EstimatedTime: "10-15s", OptionalParams: []string{"cropAspectRatio"}},
	ProcessResolutionEnhance:   {Name: "Resolution Enhance", Description: "AI detail and resolution boost", Category: CategoryEnhancement, EstimatedTime: "20-40s"},
	ProcessDenoiseAdvanced:     {Name: "Advanced Denoise", Description: "Model-based denoising", Category: CategoryEnhancement, EstimatedTime: "20-35s"},
	ProcessHDREnhance:          {Name: "HDR Enhance", Description: "Creates an HDR look", Category: CategoryEnhancement, EstimatedTime: "20-35s", OptionalParams: []string{"hdrStrength"}},
	ProcessColorPop:            {Name: "Color Pop", Description: "Emphasizes selected colors", Category: CategoryArtistic, EstimatedTime: "15-25s"},
	ProcessVintageEffect:       {Name: "Vintage Effect", Description: "Nostalgic vintage look", Category: CategoryArtistic, EstimatedTime: "10-20s", OptionalParams: []string{"vintageIntensity"}},
	ProcessBlackWhite:          {Name: "Black & White", Description: "Monochrome conversion", Category: CategoryArtistic, EstimatedTime: "5-10s"},
	ProcessSepia:               {Name: "Sepia", Description: "Classic sepia tone", Category: CategoryArtistic, EstimatedTime: "5-10s"},
	ProcessFilmGrain:           {Name: "Film Grain", Description: "Adds film grain", Category: CategoryArtistic, EstimatedTime: "8-15s", OptionalParams: []string{"filmGrainAmount"}},
	ProcessVignette:            {Name: "Vignette", Description: "Edge darkening effect", Category: CategoryArtistic, EstimatedTime: "5-10s", OptionalParams: []string{"vignetteStrength"}},
	ProcessLensCorrection:      {Name: "Lens Correction", Description: "Fixes lens distortion", Category: CategoryProfessional, EstimatedTime: "10-20s"},
	ProcessChromaticAberration: {Name: "Chromatic Aberration Fix", Description: "Removes color fringing", Category: CategoryProfessional, EstimatedTime: "10-20s"},
	ProcessSuperResolution:     {Name: "Super Resolution", Description: "Up to 8x resolution boost", Category: CategoryEnhancement, EstimatedTime: "40-80s"},
	ProcessRestoreOldPhoto:     {Name: "Restore Old Photo", Description: "Restores old or damaged photos", Category: CategoryRestoration, EstimatedTime: "40-80s"},
}

// ValidProcessType reports whether kind is part of the supported catalog.
func ValidProcessType(kind ProcessType) bool {
	_, ok := ProcessCatalog[kind]
	return ok
}

// MissingParams returns the required parameters of kind that are absent from
// params. Unknown kinds have no requirements.
func MissingParams(kind ProcessType, params Params) []string {
	info, ok := ProcessCatalog[kind]
	if !ok {
		return nil
	}
	var missing []string
	for _, name := range info.RequiredParams {
		if _, present := params[name]; !present {
			missing = append(missing, name)
		}
	}
	return missing
}

// ValidateOperation checks catalog membership and the required-parameter set.
// Errors wrap ErrInvalidProcess or ErrMissingParams.
func ValidateOperation(kind ProcessType, params Params) error {
	if !ValidProcessType(kind) {
		return fmt.Errorf("%w: %s", ErrInvalidProcess, kind)
	}
	if missing := MissingParams(kind, params); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingParams, strings.Join(missing, ", "))
	}
	return nil
}

// Params is the free-form parameter bag attached to an operation. Values come
// from JSON, so numbers arrive as float64.
type Params map[string]any

// StringOr returns the string value for key, or fallback when absent or not a string.
func (p Params) StringOr(key, fallback string) string {
	if v, ok := p[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

// FloatOr returns the numeric value for key, or fallback when absent.
func (p Params) FloatOr(key string, fallback float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return fallback
}

// IntOr returns the integer value for key, or fallback when absent.
func (p Params) IntOr(key string, fallback int) int {
	switch v := p[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return fallback
}
