package docs

import _ "embed"

//go:embed dispatch-api.openapi.yaml
var embeddedDispatchOpenAPI []byte

//go:embed swagger.html
var embeddedDispatchSwaggerHTML []byte

// DispatchOpenAPI holds the OpenAPI document for the dispatch API.
var DispatchOpenAPI = embeddedDispatchOpenAPI

// DispatchSwaggerHTML holds the Swagger UI page.
var DispatchSwaggerHTML = embeddedDispatchSwaggerHTML
