package errors

import (
	"go.uber.org/zap"
)

// LogError logs err with its category when it is a WaveError.
func LogError(logger *zap.Logger, err error, requestID string) {
	var waveErr *WaveError
	if As(err, &waveErr) {
		fields := []zap.Field{
			zap.String("error_type", string(waveErr.Type)),
			zap.String("message", waveErr.Message),
			zap.Int("code", waveErr.Code),
			zap.String("request_id", requestID),
			zap.Any("details", waveErr.Details),
		}
		if waveErr.err != nil {
			fields = append(fields, zap.Error(waveErr.err))
		}
		logger.Error("request error", fields...)
		return
	}
	logger.Error("unexpected error",
		zap.Error(err),
		zap.String("request_id", requestID),
	)
}
