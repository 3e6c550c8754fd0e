package domain

import "errors"

// ErrNoSuchUser failed to validate the credential
var ErrNoSuchUser = errors.New("No such user or password is incorrect")

// ErrDuplicatedUser unique key constraint violation
var ErrDuplicatedUser = errors.New("Username or email is already registered")

// ErrUserTooManyRetry login retry ceiling reached
var ErrUserTooManyRetry = errors.New("Too many login attempts")

// ErrLessonNotInCourse the lesson does not belong to the course
var ErrLessonNotInCourse = errors.New("Lesson does not belong to the course")
