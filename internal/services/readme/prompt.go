package readme

import (
	"fmt"
	"sort"
	"strings"

	"github.com/quillhq/quill/internal/interfaces"
	"github.com/quillhq/quill/internal/models"
)

// promptSampleLimit caps each code sample embedded in the prompt so a large
// source file cannot crowd out the rest of the context.
const promptSampleLimit = 500

// writingGuidelines are shared by generation and refinement prompts.
const writingGuidelines = `1. Use second person for instructions (You can/should) and neutral imperative commands (Install the package, Run the tests)
2. Use third person where appropriate (This project provides, The application supports)
3. NEVER use first person (We/I/Our)
4. Write directly to users with clear, actionable instructions
5. Use active voice and direct commands (e.g., "Install the package" not "The package can be installed")
6. Be specific and actionable - avoid vague statements
7. Use professional, clear, and concise language
8. Follow Markdown best practices with proper headings, lists, code blocks, etc.
9. For installation and usage sections, use real commands based on the repo's language/framework
10. Provide concrete examples where possible
11. Format the output as a valid Markdown document
12. Do not include sections that are not requested`

// buildGenerationPrompt renders the full prompt for a fresh README.
func buildGenerationPrompt(bundle *models.RepositoryContext, opts interfaces.GenerateOptions) string {
	sections := models.DefaultReadmeSections()
	if len(opts.Sections) > 0 {
		sections = append([]models.ReadmeSection(nil), opts.Sections...)
	}
	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Order < sections[j].Order })

	var b strings.Builder
	b.WriteString("# TASK\n")
	b.WriteString("You are an expert technical writer specializing in creating clear, professional, and comprehensive README documentation for software projects.\n\n")
	b.WriteString("Create a README.md for a GitHub repository with the following information:\n\n")

	b.WriteString("# REPOSITORY INFORMATION\n")
	b.WriteString(repositoryInfo(bundle))
	b.WriteString("\n# FILE STRUCTURE\n")
	b.WriteString(renderFileTree(bundle.FileTree, bundle.Repository.Size))
	b.WriteString("\n")

	if len(bundle.CodeSamples) > 0 {
		b.WriteString("\n# CODE SAMPLES\n")
		for _, sample := range bundle.CodeSamples {
			fmt.Fprintf(&b, "\nFile: %s\n```\n%s\n```\n", sample.Path, truncateSample(sample.Content))
		}
	}

	b.WriteString("\n# REQUIRED SECTIONS\n")
	b.WriteString("The README should contain the following sections:\n")
	for _, section := range sections {
		fmt.Fprintf(&b, "- %s: %s\n", section.Name, section.Description)
	}

	b.WriteString("\n# CRITICAL WRITING GUIDELINES\n")
	b.WriteString(writingGuidelines)
	b.WriteString("\n")
	if opts.BadgeStyle != "" {
		fmt.Fprintf(&b, "13. Include shields.io badges in the %q style where appropriate\n", opts.BadgeStyle)
	}

	if instructions := strings.TrimSpace(opts.Instructions); instructions != "" {
		b.WriteString("\n# ADDITIONAL INSTRUCTIONS\n")
		b.WriteString(instructions)
		b.WriteString("\n")
	}

	b.WriteString("\n# OUTPUT FORMAT\n")
	b.WriteString("Respond with ONLY the README.md content in Markdown format, without any additional explanation or conversation.\n")
	return b.String()
}

// buildRefinementPrompt renders the prompt rewriting an existing README per
// user feedback.
func buildRefinementPrompt(content, feedback string) string {
	var b strings.Builder
	b.WriteString("You are an expert technical writer specializing in improving README documentation.\n\n")
	b.WriteString("Below is a README.md file that needs to be refined based on user feedback:\n\n")
	b.WriteString("```markdown\n")
	b.WriteString(content)
	b.WriteString("\n```\n\n")
	b.WriteString("User feedback:\n")
	b.WriteString(feedback)
	b.WriteString("\n\nRevise the README to address this feedback while maintaining professional quality, proper Markdown formatting, and comprehensive coverage of the project.\n\n")
	b.WriteString("Respond with ONLY the revised README.md content in Markdown format, without any additional explanation or conversation.\n")
	return b.String()
}

func repositoryInfo(bundle *models.RepositoryContext) string {
	repo := bundle.Repository

	description := repo.Description
	if description == "" {
		description = "No description provided"
	}
	language := repo.Language
	if language == "" {
		language = "Not specified"
	}
	topics := "None"
	if len(repo.Topics) > 0 {
		topics = strings.Join(repo.Topics, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- Name: %s\n", repo.Name)
	fmt.Fprintf(&b, "- Description: %s\n", description)
	fmt.Fprintf(&b, "- Primary Language: %s\n", language)
	fmt.Fprintf(&b, "- Clone URL: %s.git\n", repo.HTMLURL)
	fmt.Fprintf(&b, "- Topics/Tags: %s\n", topics)
	if breakdown := languageBreakdown(bundle.Languages); breakdown != "" {
		fmt.Fprintf(&b, "- Languages: %s\n", breakdown)
	}
	if len(bundle.Contributors) > 0 {
		names := make([]string, len(bundle.Contributors))
		for i, c := range bundle.Contributors {
			names[i] = c.Login
		}
		fmt.Fprintf(&b, "- Top Contributors: %s\n", strings.Join(names, ", "))
	}
	if repo.License != nil {
		fmt.Fprintf(&b, "- License: %s\n", repo.License.Name)
	}
	return b.String()
}

// languageBreakdown renders "Go (82.3%), Shell (17.7%)" from byte counts,
// largest first.
func languageBreakdown(languages map[string]int64) string {
	if len(languages) == 0 {
		return ""
	}

	type langShare struct {
		name  string
		bytes int64
	}
	shares := make([]langShare, 0, len(languages))
	var total int64
	for name, count := range languages {
		shares = append(shares, langShare{name, count})
		total += count
	}
	if total == 0 {
		return ""
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].bytes != shares[j].bytes {
			return shares[i].bytes > shares[j].bytes
		}
		return shares[i].name < shares[j].name
	})

	parts := make([]string, len(shares))
	for i, s := range shares {
		parts[i] = fmt.Sprintf("%s (%.1f%%)", s.name, float64(s.bytes)*100/float64(total))
	}
	return strings.Join(parts, ", ")
}

func truncateSample(content string) string {
	if len(content) <= promptSampleLimit {
		return content
	}
	return content[:promptSampleLimit] + "..."
}

// stripMarkdownFence unwraps a ``` or ```markdown fence the model sometimes
// adds around the whole document.
func stripMarkdownFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	nl := strings.Index(trimmed, "\n")
	if nl < 0 {
		return trimmed
	}
	fence := strings.TrimSpace(trimmed[3:nl])
	if fence != "" && !strings.EqualFold(fence, "markdown") && !strings.EqualFold(fence, "md") {
		return trimmed
	}

	body := trimmed[nl+1:]
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}
