package util

import "errors"

var (
	ErrSurveyNotFound       = errors.New("survey not found")
	ErrResponseNotFound     = errors.New("survey response not found")
	ErrQuestionNotFound     = errors.New("question not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailRegistered      = errors.New("该邮箱已被注册")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrSurveyNotActive      = errors.New("survey is not accepting responses")
	ErrResponseMismatch     = errors.New("response does not belong to this survey")
	ErrRequiredQuestion     = errors.New("required question not answered")
	ErrFeedbackExists       = errors.New("feedback already submitted for this response")
	ErrFeedbackNeedResponse = errors.New("response id is required for respondent feedback")
	ErrAllProvidersFailed   = errors.New("all AI providers failed")
)
