package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="es">
<head>
  <meta charset="UTF-8">
  <title>Taxi Portal API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.json',
      dom_id: '#swagger-ui',
      persistAuthorization: true,
    });
  </script>
</body>
</html>`

// OpenAPIPath is where the served OpenAPI document is read from.
var OpenAPIPath = "api/openapi.yaml"

// loadOpenAPI reads and validates the document once, returning it as YAML
// and JSON.
func loadOpenAPI(path string) (yamlDoc, jsonDoc []byte, err error) {
	yamlDoc, err = os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	doc, err := (&openapi3.Loader{}).LoadFromData(yamlDoc)
	if err != nil {
		return nil, nil, err
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, nil, err
	}
	jsonDoc, err = json.Marshal(doc)
	if err != nil {
		return nil, nil, err
	}
	return yamlDoc, jsonDoc, nil
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. A missing or invalid document
// leaves the UI up and the document routes answering 404.
func SetupDocs(app *fiber.App) {
	yamlDoc, jsonDoc, err := loadOpenAPI(OpenAPIPath)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", OpenAPIPath, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	serve := func(body []byte, contentType string) fiber.Handler {
		return func(c *fiber.Ctx) error {
			if body == nil {
				return errNotFound(c, "openapi document not found")
			}
			c.Set(fiber.HeaderContentType, contentType)
			return c.Send(body)
		}
	}
	app.Get("/docs/openapi.yaml", serve(yamlDoc, "application/yaml"))
	app.Get("/docs/openapi.json", serve(jsonDoc, fiber.MIMEApplicationJSON))
}
