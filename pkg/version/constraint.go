// pkg/version/constraint.go
package version

import (
	"regexp"
	"strings"

	"sftpup/internal/errors"

	"github.com/Masterminds/semver/v3"
)

var (
	operatorSpaces = regexp.MustCompile(`\s*([<>=!~^])\s*`)
	bareVersion    = regexp.MustCompile(`^v?\d`)
)

// Require проверяет, что версия программы удовлетворяет условию
// requires из профиля загрузки. Пустое условие выполняется всегда.
func Require(current, requires string) error {
	ok, err := Matches(current, requires)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewVersionError(current, requires, nil)
	}
	return nil
}

func Matches(versionStr, constraintStr string) (bool, error) {
	versionStr = strings.TrimSpace(versionStr)
	constraintStr = strings.TrimSpace(constraintStr)

	if constraintStr == "" {
		return true, nil
	}

	v, err := semver.NewVersion(versionStr)
	if err != nil {
		return false, errors.NewVersionError(versionStr, constraintStr, err)
	}

	constraint, err := ParseConstraint(constraintStr)
	if err != nil {
		return false, errors.NewVersionError(versionStr, constraintStr, err)
	}

	return constraint.Check(v), nil
}

func ParseConstraint(s string) (*semver.Constraints, error) {
	return semver.NewConstraint(normalize(s))
}

// normalize убирает пробелы вокруг операторов и превращает голую
// версию "1.2" в точное условие "=1.2"
func normalize(s string) string {
	s = strings.TrimSpace(s)
	s = operatorSpaces.ReplaceAllString(s, "$1")

	if bareVersion.MatchString(s) && !strings.ContainsAny(s, ",|") {
		s = "=" + s
	}

	return s
}
