// Package parse extracts structure from generated text: "##" titled blocks,
// fenced code, and list literals. All functions are pure and fail with
// errors.ErrNoMatch when the expected marker is absent — a malformed
// response is not retried (retrying identical text will not help).
package parse

import (
	"fmt"
	"regexp"
	"strings"

	cerrors "github.com/p-blackswan/colony/internal/errors"
)

var (
	codeFenceRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)[ \t]*\n(.*?)```")
	listRe      = regexp.MustCompile(`(?s)\[(.*?)\]`)
	listItemRe  = regexp.MustCompile(`['"]([^'"]*)['"]`)
)

// ParseBlocks splits text into sections delimited by "## Title" headings.
// Returns a map of title → trimmed content. Titles with a trailing colon
// (a common generation quirk) are normalized.
func ParseBlocks(text string) map[string]string {
	blocks := make(map[string]string)
	for _, block := range strings.Split(text, "##") {
		if strings.TrimSpace(block) == "" {
			continue
		}
		title, content, _ := strings.Cut(block, "\n")
		title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(title), ":"))
		if title == "" {
			continue
		}
		blocks[title] = strings.TrimSpace(content)
	}
	return blocks
}

// ExtractBlock returns the content of the named "##" block.
func ExtractBlock(text, name string) (string, error) {
	blocks := ParseBlocks(text)
	content, ok := blocks[name]
	if !ok {
		return "", fmt.Errorf("block %q: %w", name, cerrors.ErrNoMatch)
	}
	return content, nil
}

// ExtractCode returns the body of the first fenced code block. When lang is
// non-empty only fences tagged with that language match.
func ExtractCode(text, lang string) (string, error) {
	for _, m := range codeFenceRe.FindAllStringSubmatch(text, -1) {
		if lang == "" || m[1] == lang {
			return m[2], nil
		}
	}
	return "", fmt.Errorf("code fence (lang=%q): %w", lang, cerrors.ErrNoMatch)
}

// ExtractList returns the quoted items of the first [...] literal in text.
// The shape matches how generated task/file lists are written:
//
//	tasks = ["a.go", "b.go"]
func ExtractList(text string) ([]string, error) {
	m := listRe.FindStringSubmatch(text)
	if m == nil {
		return nil, fmt.Errorf("list literal: %w", cerrors.ErrNoMatch)
	}
	var items []string
	for _, item := range listItemRe.FindAllStringSubmatch(m[1], -1) {
		items = append(items, item[1])
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("list literal has no quoted items: %w", cerrors.ErrNoMatch)
	}
	return items, nil
}
