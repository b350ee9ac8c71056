package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Ограничения пользовательского ввода
const (
	MinDisplayNameLength      = 2
	MaxDisplayNameLength      = 100
	MinOrderTitleLength       = 3
	MaxOrderTitleLength       = 200
	MinOrderDescriptionLength = 10
	MaxOrderDescriptionLength = 5000
	MinCoverLetterLength      = 10
	MaxCoverLetterLength      = 2000
	MinDisputeReasonLength    = 10
	MaxDisputeReasonLength    = 2000
	MaxNoteLength             = 1000
	MaxLinkLength             = 500
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	displayNameRegex = regexp.MustCompile(`^[\p{L}0-9\s\-_.,!?()']+$`)
)

// videoHosts площадки, ссылки на которые принимаются как опубликованное видео.
var videoHosts = []string{"youtube.com", "youtu.be", "vimeo.com", "tiktok.com", "instagram.com"}

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}

	localPart, domainPart, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domainPart, "@") {
		return fmt.Errorf("некорректный формат email")
	}
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}
	if err := ValidateLength("отображаемое имя", displayName, MinDisplayNameLength, MaxDisplayNameLength); err != nil {
		return err
	}
	if !displayNameRegex.MatchString(displayName) {
		return fmt.Errorf("отображаемое имя содержит недопустимые символы")
	}
	return nil
}

func ValidateOrderTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("заголовок заказа обязателен")
	}
	return ValidateLength("заголовок заказа", title, MinOrderTitleLength, MaxOrderTitleLength)
}

func ValidateOrderDescription(description string) error {
	description = strings.TrimSpace(description)
	if description == "" {
		return fmt.Errorf("описание заказа обязательно")
	}
	return ValidateLength("описание заказа", description, MinOrderDescriptionLength, MaxOrderDescriptionLength)
}

// ValidateDeadline проверяет, что срок заказа в будущем.
func ValidateDeadline(deadline, now time.Time) error {
	if deadline.IsZero() {
		return fmt.Errorf("срок выполнения обязателен")
	}
	if !deadline.After(now) {
		return fmt.Errorf("срок выполнения должен быть в будущем")
	}
	return nil
}

// ValidateCoverLetter проверяет сопроводительное письмо к отклику.
func ValidateCoverLetter(coverLetter string) error {
	coverLetter = strings.TrimSpace(coverLetter)
	if coverLetter == "" {
		return fmt.Errorf("сопроводительное письмо обязательно")
	}
	return ValidateLength("сопроводительное письмо", coverLetter, MinCoverLetterLength, MaxCoverLetterLength)
}

func ValidateDisputeReason(reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fmt.Errorf("причина спора обязательна")
	}
	return ValidateLength("причина спора", reason, MinDisputeReasonLength, MaxDisputeReasonLength)
}

// ValidateNote проверяет необязательный комментарий.
func ValidateNote(note string) error {
	return ValidateLength("комментарий", strings.TrimSpace(note), 0, MaxNoteLength)
}

// ValidateExternalLink проверяет http(s) ссылку.
func ValidateExternalLink(link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return fmt.Errorf("ссылка обязательна")
	}
	if err := ValidateLength("ссылка", link, 0, MaxLinkLength); err != nil {
		return err
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}

// ValidateVideoURL проверяет ссылку на опубликованное видео.
func ValidateVideoURL(link string) error {
	if err := ValidateExternalLink(link); err != nil {
		return err
	}
	parsedURL, _ := url.Parse(strings.TrimSpace(link))
	host := strings.TrimPrefix(strings.ToLower(parsedURL.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")
	for _, allowed := range videoHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("ссылка должна вести на видеоплатформу")
}
