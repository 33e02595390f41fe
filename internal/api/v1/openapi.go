package apiv1

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// LoadSpec reads and validates the OpenAPI document served under /docs/api.
func LoadSpec(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load openapi spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi spec: %w", err)
	}
	return doc, nil
}

// RequestValidator rejects requests that do not match doc. prefix is the
// mount point of the API and is stripped before routes are matched.
func RequestValidator(doc *openapi3.T, prefix string) (fiber.Handler, error) {
	// servers only matter for the docs; routes are matched on the stripped path
	spec := *doc
	spec.Servers = nil
	router, err := legacy.NewRouter(&spec)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	options := &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc}

	return func(c *fiber.Ctx) error {
		req, err := adaptor.ConvertRequest(c, false)
		if err != nil {
			return err
		}
		req.URL.Path = strings.TrimPrefix(req.URL.Path, prefix)
		if req.URL.Path == "" {
			req.URL.Path = "/"
		}

		route, params, err := router.FindRoute(req)
		if err != nil {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
				Error:   "not_found",
				Message: "unknown endpoint",
			})
		}
		input := &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
			Options:    options,
		}
		if err := openapi3filter.ValidateRequest(c.UserContext(), input); err != nil {
			return badRequest(c, err)
		}
		return c.Next()
	}, nil
}
