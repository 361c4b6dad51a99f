package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "ecertify/pkg/domain-errors"
)

type uploadRequest struct {
	ContentRef   string `json:"content_ref" validate:"required,notblank"`
	DocumentName string `json:"document_name" validate:"required,notblank,max=10"`
}

type grantRequest struct {
	Grantee         string `validate:"required,actor"`
	DurationSeconds int64  `validate:"gt=0"`
}

// ValidationSuite covers the request validators used at the HTTP boundary.
type ValidationSuite struct {
	suite.Suite
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

func (s *ValidationSuite) requireInvalid(err error, contains string) {
	s.T().Helper()
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Contains(err.Error(), contains)
}

func (s *ValidationSuite) TestValidate() {
	s.Run("accepts a valid request", func() {
		s.NoError(Validate(uploadRequest{ContentRef: "QmHash", DocumentName: "Degree"}))
	})

	s.Run("reports missing fields in snake case", func() {
		s.requireInvalid(Validate(uploadRequest{DocumentName: "Degree"}), "content_ref is required")
	})

	s.Run("rejects blank strings", func() {
		s.requireInvalid(Validate(uploadRequest{ContentRef: "   ", DocumentName: "Degree"}), "content_ref must not be blank")
	})

	s.Run("enforces max", func() {
		s.requireInvalid(Validate(uploadRequest{ContentRef: "QmHash", DocumentName: strings.Repeat("x", 11)}), "document_name must be at most 10")
	})

	s.Run("validates actor addresses", func() {
		s.NoError(Validate(grantRequest{Grantee: "0x00000000000000000000000000000000000000e1", DurationSeconds: 60}))
		s.requireInvalid(Validate(grantRequest{Grantee: "employer", DurationSeconds: 60}), "grantee must be a 0x-prefixed 20-byte address")
	})

	s.Run("enforces positive durations", func() {
		s.requireInvalid(Validate(grantRequest{Grantee: "0x00000000000000000000000000000000000000e1"}), "duration_seconds must be greater than 0")
	})
}

func (s *ValidationSuite) TestFieldNames() {
	type profileRequest struct {
		AvatarRef   string `json:"avatar,omitempty" validate:"required"`
		IsInstitute string `validate:"required"`
	}

	s.Run("uses the json name", func() {
		s.requireInvalid(Validate(profileRequest{IsInstitute: "yes"}), "avatar is required")
	})

	s.Run("falls back to snake case", func() {
		s.requireInvalid(Validate(profileRequest{AvatarRef: "QmHash"}), "is_institute is required")
	})
}
