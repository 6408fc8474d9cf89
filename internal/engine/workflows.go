package engine

import (
	"math/rand"

	"refinery/internal/domain"
)

// maxSeed bounds generated sampler seeds to [0, 2^30).
const maxSeed = 1 << 30

const defaultCheckpoint = "sd_xl_base_1.0.safetensors"

type builder func(image string, params domain.Params) Graph

// builders maps each operation kind with a dedicated node template to its
// compiler. Kinds without an entry compile to the generic passthrough graph,
// so Compile stays total over the whole catalog.
var builders = map[domain.ProcessType]builder{
	domain.ProcessObjectDelete:       objectDeleteWorkflow,
	domain.ProcessBackgroundChange:   backgroundChangeWorkflow,
	domain.ProcessBackgroundRemove:   backgroundRemoveWorkflow,
	domain.ProcessBackgroundColor:    backgroundColorWorkflow,
	domain.ProcessModelChange:        modelChangeWorkflow,
	domain.ProcessNoiseFix:           noiseFixWorkflow,
	domain.ProcessUpscale:            upscaleWorkflow,
	domain.ProcessRotate:             rotateWorkflow,
	domain.ProcessBrightnessContrast: brightnessContrastWorkflow,
	domain.ProcessSharpen:            sharpenWorkflow,
	domain.ProcessBlurBackground:     blurBackgroundWorkflow,
	domain.ProcessFaceEnhance:        faceEnhanceWorkflow,
	domain.ProcessSkinSmooth:         skinSmoothWorkflow,
	domain.ProcessTeethWhiten:        teethWhitenWorkflow,
}

// Compile maps an operation to an executable graph. Pure except for seed
// generation when the caller supplied none. Never fails: unmapped kinds get
// the passthrough template.
func Compile(kind domain.ProcessType, params domain.Params, image string) Graph {
	b, ok := builders[kind]
	if !ok {
		b = passthroughWorkflow
	}
	if params == nil {
		params = domain.Params{}
	}
	return b(image, params)
}

func seedOr(params domain.Params) int {
	return params.IntOr("seed", rand.Intn(maxSeed))
}

func passthroughWorkflow(image string, _ domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("1", 0), "filename_prefix": "output"}},
	}
}

func objectDeleteWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": defaultCheckpoint}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("prompt", "clean background, seamless, natural"),
			"clip": Ref("2", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("negativePrompt", "artifacts, noise, blur, watermark"),
			"clip": Ref("2", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seedOr(params),
			"steps":        25,
			"cfg":          7.5,
			"sampler_name": "dpmpp_2m",
			"scheduler":    "karras",
			"denoise":      0.7,
			"model":        Ref("2", 0),
			"positive":     Ref("3", 0),
			"negative":     Ref("4", 0),
			"latent_image": Ref("6", 0),
		}},
		"6": {ClassType: "VAEEncode", Inputs: map[string]any{"pixels": Ref("1", 0), "vae": Ref("2", 2)}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": Ref("5", 0), "vae": Ref("2", 2)}},
		"8": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("7", 0), "filename_prefix": "object_delete"}},
	}
}

func backgroundChangeWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": defaultCheckpoint}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("prompt", "professional studio background, clean, modern"),
			"clip": Ref("2", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("negativePrompt", "busy background, cluttered, distracting"),
			"clip": Ref("2", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seedOr(params),
			"steps":        30,
			"cfg":          8.0,
			"sampler_name": "dpmpp_2m_sde",
			"scheduler":    "karras",
			"denoise":      0.85,
			"model":        Ref("2", 0),
			"positive":     Ref("3", 0),
			"negative":     Ref("4", 0),
			"latent_image": Ref("6", 0),
		}},
		"6": {ClassType: "VAEEncode", Inputs: map[string]any{"pixels": Ref("1", 0), "vae": Ref("2", 2)}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": Ref("5", 0), "vae": Ref("2", 2)}},
		"8": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("7", 0), "filename_prefix": "background_change"}},
	}
}

func backgroundRemoveWorkflow(image string, _ domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "RemoveBackground", Inputs: map[string]any{"images": Ref("1", 0)}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "background_remove"}},
	}
}

func backgroundColorWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "SolidColor", Inputs: map[string]any{
			"color":  params.StringOr("backgroundColor", "#FFFFFF"),
			"width":  1024,
			"height": 1024,
		}},
		"3": {ClassType: "ImageComposite", Inputs: map[string]any{
			"background": Ref("2", 0),
			"foreground": Ref("1", 0),
			"method":     "normal",
		}},
		"4": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("3", 0), "filename_prefix": "bg_color"}},
	}
}

func modelChangeWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{
			"ckpt_name": params.StringOr("modelName", defaultCheckpoint),
		}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("prompt", "high quality, professional, detailed"),
			"clip": Ref("2", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": params.StringOr("negativePrompt", "low quality, blur, noise"),
			"clip": Ref("2", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seedOr(params),
			"steps":        25,
			"cfg":          7.5,
			"sampler_name": "euler_ancestral",
			"scheduler":    "normal",
			"denoise":      0.75,
			"model":        Ref("2", 0),
			"positive":     Ref("3", 0),
			"negative":     Ref("4", 0),
			"latent_image": Ref("6", 0),
		}},
		"6": {ClassType: "VAEEncode", Inputs: map[string]any{"pixels": Ref("1", 0), "vae": Ref("2", 2)}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": Ref("5", 0), "vae": Ref("2", 2)}},
		"8": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("7", 0), "filename_prefix": "model_change"}},
	}
}

func noiseFixWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "CheckpointLoaderSimple", Inputs: map[string]any{"ckpt_name": defaultCheckpoint}},
		"3": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": "masterpiece, best quality, highly detailed, sharp, clear, professional photography",
			"clip": Ref("2", 1),
		}},
		"4": {ClassType: "CLIPTextEncode", Inputs: map[string]any{
			"text": "blur, noise, grain, low quality, artifacts, jpeg artifacts, watermark",
			"clip": Ref("2", 1),
		}},
		"5": {ClassType: "KSampler", Inputs: map[string]any{
			"seed":         seedOr(params),
			"steps":        20,
			"cfg":          6.5,
			"sampler_name": "dpmpp_2m",
			"scheduler":    "karras",
			"denoise":      0.4,
			"model":        Ref("2", 0),
			"positive":     Ref("3", 0),
			"negative":     Ref("4", 0),
			"latent_image": Ref("6", 0),
		}},
		"6": {ClassType: "VAEEncode", Inputs: map[string]any{"pixels": Ref("1", 0), "vae": Ref("2", 2)}},
		"7": {ClassType: "VAEDecode", Inputs: map[string]any{"samples": Ref("5", 0), "vae": Ref("2", 2)}},
		"8": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("7", 0), "filename_prefix": "noise_fix"}},
	}
}

func upscaleWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "UpscaleModelLoader", Inputs: map[string]any{
			"model_name": params.StringOr("upscaleModel", "RealESRGAN_x4plus.pth"),
		}},
		"3": {ClassType: "ImageUpscaleWithModel", Inputs: map[string]any{
			"upscale_model": Ref("2", 0),
			"image":         Ref("1", 0),
		}},
		"4": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("3", 0), "filename_prefix": "upscale"}},
	}
}

func rotateWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "ImageRotate", Inputs: map[string]any{
			"image": Ref("1", 0),
			"angle": params.FloatOr("rotationAngle", 90),
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "rotated"}},
	}
}

func brightnessContrastWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "ImageAdjustBrightnessContrast", Inputs: map[string]any{
			"image":      Ref("1", 0),
			"brightness": params.FloatOr("brightness", 0),
			"contrast":   params.FloatOr("contrast", 0),
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "adjusted"}},
	}
}

func sharpenWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "ImageSharpen", Inputs: map[string]any{
			"image":    Ref("1", 0),
			"strength": params.FloatOr("sharpness", 1.5),
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "sharpened"}},
	}
}

func blurBackgroundWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "RemBG", Inputs: map[string]any{"image": Ref("1", 0)}},
		"3": {ClassType: "ImageBlur", Inputs: map[string]any{
			"image":       Ref("1", 0),
			"blur_radius": params.FloatOr("blurStrength", 7),
		}},
		"4": {ClassType: "ImageComposite", Inputs: map[string]any{
			"background": Ref("3", 0),
			"foreground": Ref("2", 0),
			"method":     "normal",
		}},
		"5": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("4", 0), "filename_prefix": "blur_bg"}},
	}
}

func faceEnhanceWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "FaceRestore", Inputs: map[string]any{
			"image":    Ref("1", 0),
			"strength": params.FloatOr("faceEnhanceStrength", 0.8),
			"model":    "GFPGANv1.4",
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "face_enhanced"}},
	}
}

func skinSmoothWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "SkinSmooth", Inputs: map[string]any{
			"image":        Ref("1", 0),
			"smooth_level": params.FloatOr("skinSmoothLevel", 0.6),
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "skin_smooth"}},
	}
}

func teethWhitenWorkflow(image string, params domain.Params) Graph {
	return Graph{
		"1": {ClassType: classLoadImage, Inputs: map[string]any{"image": image, "upload": "image"}},
		"2": {ClassType: "TeethWhiten", Inputs: map[string]any{
			"image":        Ref("1", 0),
			"whiten_level": params.FloatOr("teethWhitenLevel", 0.7),
		}},
		"3": {ClassType: classSaveImage, Inputs: map[string]any{"images": Ref("2", 0), "filename_prefix": "teeth_whitened"}},
	}
}
