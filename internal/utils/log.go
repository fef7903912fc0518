package utils

import "log/slog"

// ErrAttr renders err under the "error" key
//
//	log.Error("failed to create product", utils.ErrAttr(err))
func ErrAttr(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}
