package controllers

import (
	"errors"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/cache"
	metrics "github.com/ManuelReschke/MemberGate/internal/pkg/metrics/counter"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
	"github.com/ManuelReschke/MemberGate/internal/pkg/utils"
	"github.com/ManuelReschke/MemberGate/internal/pkg/viewmodel"
)

const (
	lessonCommentLimit = 100
	lessonCacheTTL     = 10 * time.Minute
)

// LessonTag is the revalidation tag of everything cached for one lesson.
func LessonTag(lessonID uint) string {
	return "lesson-" + strconv.FormatUint(uint64(lessonID), 10)
}

// HandleHubIndex lists the categories of the education hub
func HandleHubIndex(c *fiber.Ctx) error {
	categories, err := svc().Repos.Education.Categories()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch categories")
	}
	return render(c, "hub/index", "Education Hub", fiber.Map{
		"Categories": categories,
	})
}

// HandleHubCategory lists the lessons of one category
func HandleHubCategory(c *fiber.Ctx) error {
	repo := svc().Repos.Education
	category, err := repo.CategoryBySlug(c.Params("category"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Category not found")
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch category")
	}
	lessons, err := repo.LessonsByCategory(category.Slug)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch lessons")
	}
	return render(c, "hub/category", category.Title, fiber.Map{
		"Category": category,
		"Lessons":  lessons,
	})
}

// HandleHubLesson renders a lesson with its video, content and comments
func HandleHubLesson(c *fiber.Ctx) error {
	s := svc()
	lesson, err := s.Repos.Education.LessonBySlug(c.Params("category"), c.Params("lesson"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).SendString("Lesson not found")
		}
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to fetch lesson")
	}

	if err := metrics.AddLessonView(lesson.ID); err != nil {
		log.Debugf("[Hub] View of lesson %d not counted: %v", lesson.ID, err)
	}

	data := fiber.Map{
		"Category": c.Params("category"),
		"Lesson":   lesson,
		"Content":  template.HTML(utils.ProcessHTMLContent(lesson.Content)),
		"Comments": visibleComments(c, lessonComments(lesson.ID)),
		"OG": &viewmodel.OpenGraph{
			Title:       lesson.Title,
			Description: stripHTMLAndTruncate(lesson.Content, 150),
			URL:         c.BaseURL() + c.OriginalURL(),
		},
	}
	if lesson.MuxPlaybackID != "" && s.Videos != nil {
		if url, err := s.Videos.PlaybackURL(lesson.MuxPlaybackID); err == nil {
			data["VideoURL"] = url
		} else {
			log.Warnf("[Mux] Could not sign playback of lesson %d: %v", lesson.ID, err)
		}
		if poster, err := s.Videos.ThumbnailURL(lesson.MuxPlaybackID); err == nil {
			data["PosterURL"] = poster
		}
	}
	return render(c, "hub/lesson", lesson.Title, data)
}

// lessonComments reads the approved comments of a lesson through the page
// cache; a new comment revalidates LessonTag.
func lessonComments(lessonID uint) []models.Comment {
	key := cache.PageKey(LessonTag(lessonID), "comments")
	comments, err := cache.Remember(key, lessonCacheTTL, func() ([]models.Comment, error) {
		return svc().Repos.Comment.ForLesson(lessonID, lessonCommentLimit)
	})
	if err != nil {
		log.Errorf("[Hub] Could not load comments of lesson %d: %v", lessonID, err)
		return nil
	}
	return comments
}

func visibleComments(c *fiber.Ctx, comments []models.Comment) []models.Comment {
	uc := usercontext.GetUserContext(c)
	visible := make([]models.Comment, 0, len(comments))
	for _, comment := range comments {
		if comment.VisibleTo(uc.UserID, uc.IsAdmin) {
			visible = append(visible, comment)
		}
	}
	return visible
}

// stripHTMLAndTruncate turns lesson HTML into a short plain text description
func stripHTMLAndTruncate(html string, maxLength int) string {
	var result strings.Builder
	var inTag bool
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			result.WriteRune(' ')
		case !inTag:
			result.WriteRune(r)
		}
	}

	stripped := strings.Join(strings.Fields(result.String()), " ")
	runes := []rune(stripped)
	if len(runes) <= maxLength {
		return stripped
	}
	return string(runes[:maxLength])
}
