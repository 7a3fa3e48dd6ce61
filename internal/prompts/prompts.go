package prompts

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/timmy/museguide/internal/domain"
)

// ============================================================================
// VLM Extraction Prompt
// ============================================================================

// ExtractionPrompt instructs the vision model to return a structured
// artwork record, or an explicit error object when the photo is not an
// artwork. Both VLM capabilities receive the identical instruction.
const ExtractionPrompt = `请分析这张艺术品图片，并以JSON格式返回以下信息：
{
    "name_cn": "艺术品中文名称",
    "name_en": "艺术品英文名称（如果知道）",
    "artist": "作者",
    "year": "创作年代（如：1503-1519）",
    "style": "艺术流派（如：文艺复兴、印象派等）",
    "description": "简短描述（50字以内）"
}

如果无法识别为艺术品，请返回：
{"error": "无法识别为艺术品"}

只返回JSON，不要其他内容。`

// ============================================================================
// Narration Prompt Templates
// ============================================================================

// DefaultProfessionalPrompt is the built-in professional-style template,
// used when no override file is present. Placeholders: {name} {artist}
// {year} {style}.
const DefaultProfessionalPrompt = `你是一位资深的艺术史专家和博物馆讲解员。请为以下艺术品撰写专业讲解词。

艺术品信息：
- 名称：{name}
- 作者：{artist}
- 年代：{year}
- 流派：{style}

要求：
1. 讲解词约 300 字
2. 重点介绍艺术技法、流派特点和历史地位
3. 使用专业但易懂的语言
4. 可适当引用艺术评论家的评价`

// DefaultCasualPrompt is the built-in casual-style template.
const DefaultCasualPrompt = `你是一位幽默风趣的博物馆导游，擅长用轻松有趣的方式讲述艺术品背后的故事。

艺术品信息：
- 名称：{name}
- 作者：{artist}
- 年代：{year}

要求：
1. 讲解词约 200 字
2. 可以分享创作者的趣闻轶事
3. 使用第一人称，仿佛艺术品在自我介绍
4. 语言活泼，适合年轻观众`

var promptFiles = map[domain.Style]string{
	domain.StyleProfessional: "professional.txt",
	domain.StyleCasual:       "casual.txt",
}

var defaultPrompts = map[domain.Style]string{
	domain.StyleProfessional: DefaultProfessionalPrompt,
	domain.StyleCasual:       DefaultCasualPrompt,
}

// Narration returns the narration prompt template for a style. A
// non-empty template file in dir overrides the built-in default.
// Parameters:
//   - dir: prompts directory; empty skips the file lookup.
//   - style: narration style.
// Returns:
//   - string: prompt template with {name}/{artist}/{year}/{style} placeholders.
//   - error: non-nil for unknown styles.
func Narration(dir string, style domain.Style) (string, error) {
	fallback, ok := defaultPrompts[style]
	if !ok {
		return "", fmt.Errorf("unknown narration style: %s", style)
	}

	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, promptFiles[style]))
		if err == nil && len(data) > 0 {
			return string(data), nil
		}
	}

	return fallback, nil
}
