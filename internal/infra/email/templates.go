package email

import (
	"bytes"
	"fmt"
	"html/template"
	"math"

	"authflow/internal/domain/entity"
	"authflow/internal/domain/service"

	"github.com/pkg/errors"
)

var otpTemplate = template.Must(template.New("otp").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #333;">{{.Heading}}</h2>
  <div style="background: #f5f5f5; padding: 20px; border-radius: 8px; text-align: center; margin: 20px 0;">
    <span style="font-size: 32px; font-weight: bold; letter-spacing: 4px; color: #2563eb;">{{.Code}}</span>
  </div>
  <p style="color: #666;">This code will expire in {{.Minutes}} minutes.</p>
</div>`))

type renderedOTP struct {
	Subject string
	HTML    string
	Text    string
}

// subjectFor returns the subject line shown for each code type.
func subjectFor(otpType entity.OTPType) string {
	if otpType == entity.OTPTypeSignIn {
		return "Your sign in code"
	}

	return "Verify your email"
}

func renderOTP(msg *service.OTPMessage) (*renderedOTP, error) {
	subject := subjectFor(msg.Type)
	minutes := int(math.Ceil(msg.ExpiresIn.Minutes()))

	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Heading string
		Code    string
		Minutes int
	}{
		Heading: subject,
		Code:    msg.Code,
		Minutes: minutes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to render otp email")
	}

	return &renderedOTP{
		Subject: subject,
		HTML:    buf.String(),
		Text:    fmt.Sprintf("%s: %s\n\nThis code will expire in %d minutes.", subject, msg.Code, minutes),
	}, nil
}
