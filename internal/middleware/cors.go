package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

var corsPolicy = cors.New(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
	MaxAge:         600,
})

// CORS 允许浏览器端跨域调用接口。
func CORS(next http.Handler) http.Handler {
	return corsPolicy.Handler(next)
}
