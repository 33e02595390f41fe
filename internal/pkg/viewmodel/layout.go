package viewmodel

import "github.com/gofiber/fiber/v2"

type Layout struct {
	Page          string
	SiteTitle     string
	FromProtected bool
	IsError       bool
	Msg           fiber.Map
	Username      string
	IsAdmin       bool
	Package       string
	CSRF          string
	OGViewModel   *OpenGraph
}

// OpenGraph holds the og: meta tags of public pages.
type OpenGraph struct {
	Title       string
	Description string
	URL         string
	Image       string
}

// Title joins the page title and the site title.
func (l Layout) Title() string {
	if l.Page == "" {
		return l.SiteTitle
	}
	return l.Page + " | " + l.SiteTitle
}

// FlashType returns the flash message type, empty without a message.
func (l Layout) FlashType() string {
	if l.Msg == nil {
		return ""
	}
	if t, ok := l.Msg["type"].(string); ok {
		return t
	}
	return ""
}

// FlashMessage returns the flash message text.
func (l Layout) FlashMessage() string {
	if l.Msg == nil {
		return ""
	}
	if m, ok := l.Msg["message"].(string); ok {
		return m
	}
	return ""
}
