// Пакет openapi — встроенный OpenAPI-контракт Member Gateway.
package openapi

import _ "embed"

// Spec — OpenAPI 3 документ API шлюза.
//
//go:embed openapi.yaml
var Spec []byte
