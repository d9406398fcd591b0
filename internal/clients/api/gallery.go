package api

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pribylovaa/pixsort-client/internal/models"
)

// Uncategorized — группа для изображений без общей категории.
const Uncategorized = "Uncategorized"

// GroupByCategory группирует изображения по первой общей категории.
// Группы упорядочены по алфавиту, порядок изображений внутри группы
// сохраняется; изображения без категорий попадают в Uncategorized.
func GroupByCategory(images []models.Image) []models.CategoryGroup {
	idx := make(map[string]int)
	var groups []models.CategoryGroup

	for _, img := range images {
		cat := Uncategorized
		if len(img.GeneralCategories) > 0 && strings.TrimSpace(img.GeneralCategories[0]) != "" {
			cat = img.GeneralCategories[0]
		}

		i, ok := idx[cat]
		if !ok {
			i = len(groups)
			idx[cat] = i
			groups = append(groups, models.CategoryGroup{Category: cat})
		}
		groups[i].Images = append(groups[i].Images, img)
	}

	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Category < groups[j].Category })

	return groups
}

// Preview обрезает каждую группу до n изображений (n <= 0 — без ограничения).
func Preview(groups []models.CategoryGroup, n int) []models.CategoryGroup {
	if n <= 0 {
		return groups
	}

	out := make([]models.CategoryGroup, len(groups))
	for i, g := range groups {
		out[i] = g
		if len(g.Images) > n {
			out[i].Images = g.Images[:n:n]
		}
	}

	return out
}

// CategoryTitle приводит сегмент URL к имени категории бэкенда:
// первая буква заглавная ("animals" -> "Animals").
func CategoryTitle(slug string) string {
	r, size := utf8.DecodeRuneInString(slug)
	if r == utf8.RuneError {
		return slug
	}

	return string(unicode.ToUpper(r)) + slug[size:]
}
