package services

import (
	"regexp"
	"strings"

	"github.com/snap-point/social-api/apperrors"
)

const maxBioLength = 150

var usernamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var reservedUsernames = map[string]bool{
	"admin": true, "root": true, "api": true, "www": true, "mail": true, "ftp": true,
	"test": true, "demo": true, "user": true, "guest": true, "null": true, "undefined": true,
	"me": true, "id": true,
}

// validateUsername enforces 3-20 characters, a leading letter, letters,
// digits and underscores only, and no reserved words. "me" and "id" are
// reserved because they collide with /users routes.
func validateUsername(username string) error {
	if len(username) < 3 {
		return apperrors.NewValidation("username must be at least 3 characters long")
	}
	if len(username) > 20 {
		return apperrors.NewValidation("username must be no more than 20 characters long")
	}
	if !usernamePattern.MatchString(username) {
		return apperrors.NewValidation("username must start with a letter and contain only letters, numbers, and underscores")
	}
	if reservedUsernames[strings.ToLower(username)] {
		return apperrors.NewValidation("this username is reserved and cannot be used")
	}
	return nil
}

func validateBio(bio string) error {
	if len([]rune(bio)) > maxBioLength {
		return apperrors.NewValidation("Bio can be only 150 characters long")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return apperrors.NewValidation("password must be at least 6 characters long")
	}
	return nil
}
