package http

import (
	"github.com/dept-site-api/internal/application/authz"
	"github.com/dept-site-api/internal/application/verification"
	"github.com/dept-site-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/dept-site-api/internal/infrastructure/jwt"
	s3infra "github.com/dept-site-api/internal/infrastructure/s3"
	"github.com/dept-site-api/internal/infrastructure/smtp"
	"github.com/dept-site-api/internal/pkg/metrics"
)

// Deps holds the infrastructure the router wires into services.
type Deps struct {
	AccountRepo *dynamo.AccountRepo
	FileRepo    *dynamo.FileRepo
	S3Store     *s3infra.Store
	Codes       *verification.Registry
	Mailer      smtp.Mailer
	JWTProvider *jwtinfra.Provider
	Authorizer  *authz.Authorizer
	Metrics     *metrics.Metrics
}
