package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed    = errors.New("validation failed")
	ErrPasswordTooShort    = errors.New("password is too short")
	ErrEventNameRequired   = errors.New("event name is required")
	ErrTokenNotProvided    = errors.New("token code is required")
	ErrTokenAlreadyUsed    = errors.New("token already used to create an event")
	ErrJoinCodeNotProvided = errors.New("join code is required")
	ErrEmailRequired       = errors.New("email is required")
	ErrUnknownRole         = errors.New("unknown role name")
	ErrInvalidSumulaKind   = errors.New("invalid sumula kind")
	ErrSumulaNameRequired  = errors.New("sumula name is required")
	ErrNegativePoints      = errors.New("points must not be negative")

	// Несогласованность ссылок между сущностями
	ErrScoreEventMismatch      = errors.New("player does not belong to the supplied event")
	ErrScoreSumulaMismatch     = errors.New("sumula does not belong to the supplied event")
	ErrScoreLinkExclusivity    = errors.New("score must reference exactly one sumula")
	ErrResultsPlayerWrongEvent = errors.New("player does not belong to the results' event")

	// Ошибки конфликтов
	ErrUserEmailConflict    = errors.New("email address is already in use")
	ErrEventAlreadyCreated  = errors.New("an event already exists for this token")
	ErrStaffAlreadyInEvent  = errors.New("person is already staff of this event")
	ErrPlayerAlreadyInEvent = errors.New("person is already a player of this event")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")
	ErrNotEventStaff          = errors.New("user is not staff of this event")
	ErrNotSumulaReferee       = errors.New("user is not a referee of this sumula")
	ErrNotEventAdmin          = errors.New("user is not the administrator of this event")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound        = errors.New("user not found")
	ErrTokenNotFound       = errors.New("token not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrStaffNotFound       = errors.New("staff not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrSumulaNotFound      = errors.New("sumula not found")
	ErrPlayerScoreNotFound = errors.New("player score not found")
	ErrResultsNotFound     = errors.New("results not found")

	// Ошибки публикации итогов
	ErrResultsNotPublished = errors.New("results are not published yet")
	ErrResultsNoFields     = errors.New("at least one of top4, paladin or ambassador is required")
)
