package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/MemberGate/app/models"
	"github.com/ManuelReschke/MemberGate/internal/pkg/funnel"
	"github.com/ManuelReschke/MemberGate/internal/pkg/usercontext"
)

const (
	msgCommentEmpty  = "Please write a comment first."
	msgCommentFailed = "Your comment could not be saved. Please try again."
)

// HandleCommentCreate stores a member comment, optionally on a lesson
func HandleCommentCreate(c *fiber.Ctx) error {
	s := svc()
	uc := usercontext.GetUserContext(c)
	back := safeRedirect(c.FormValue("redirect"), "/privatehome")

	if s.Writer == nil {
		log.Errorf("[Comment] Refused: no write credentials configured")
		return flashError(c, funnel.MsgMissingWriteCreds, back)
	}

	body := strings.TrimSpace(c.FormValue("comment"))
	if body == "" {
		return flashError(c, msgCommentEmpty, back)
	}

	comment := &models.Comment{
		UserID:     uc.UserID,
		AuthorName: uc.Username,
		Body:       body,
		Approved:   true,
		Private:    c.FormValue("private") == "on",
		Keywords:   strings.TrimSpace(c.FormValue("keywords")),
	}
	if raw := c.FormValue("lesson_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return flashError(c, msgCommentFailed, back)
		}
		lessonID := uint(id)
		comment.LessonID = &lessonID
	}

	if err := s.Writer.Comment.Create(comment); err != nil {
		log.Errorf("[Comment] Could not store comment of %s: %v", uc.UserID, err)
		return flashError(c, msgCommentFailed, back)
	}

	if comment.LessonID != nil && s.Pages != nil {
		if err := s.Pages.Revalidate(c.UserContext(), LessonTag(*comment.LessonID)); err != nil {
			log.Warnf("[Comment] Revalidating lesson %d failed: %v", *comment.LessonID, err)
		}
	}
	return flashSuccess(c, "Thanks for your comment!", back)
}
