package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorStaleVersion signals an optimistic-concurrency token mismatch.
var ErrorStaleVersion = errors.New("record was modified by another request")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
