package notification

import (
	"bytes"
	"html/template"
)

const verificationSubject = "Email verification"

var verificationTemplate = template.Must(template.New("verify-email").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="text-align: center; margin: 30px 0;">
    <h1 style="font-size: 32px; background-color: #f5f5f5; padding: 12px; border-radius: 4px;">{{.Code}}</h1>
  </div>
</div>
`))

func renderVerificationEmail(code string) (string, error) {
	var buf bytes.Buffer
	if err := verificationTemplate.Execute(&buf, map[string]string{"Code": code}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
