package validation

import (
	"errors"
)

// ValidateCaption validates a post caption
func ValidateCaption(caption string) error {
	if len(caption) < 5 {
		return errors.New("caption must be at least 5 characters")
	}

	if len(caption) > 2200 {
		return errors.New("caption is too long (max 2200 characters)")
	}

	return nil
}
