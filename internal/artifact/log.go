package artifact

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the run's append-only log sink (§4.8, §6 "<config-basename>-log.txt").
// It wraps a single zap.Logger writing to a lumberjack-rotated file so a
// long-running or repeatedly-invoked stash never grows one file unbounded,
// following the teacher's observer/logging setup.
type Logger struct {
	zap *zap.Logger
}

// NewLogger opens (or creates) path and returns a Logger writing structured
// entries to it.
func NewLogger(path string) (*Logger, error) {
	sink := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50,
		MaxBackups: 3,
		Compress:   false,
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(sink), zapcore.InfoLevel)
	return &Logger{zap: zap.New(core)}, nil
}

// Close flushes and releases the underlying sink.
func (l *Logger) Close() error {
	return l.zap.Sync()
}

func (l *Logger) RunStart(stashName, runTimestamp string) {
	l.zap.Info("run_start", zap.String("stash", stashName), zap.String("run_timestamp", runTimestamp))
}

func (l *Logger) RunEnd(stashName string, exitCode int) {
	l.zap.Info("run_end", zap.String("stash", stashName), zap.Int("exit_code", exitCode))
}

func (l *Logger) ResolutionNotice(msg string) {
	l.zap.Info("resolution", zap.String("message", msg))
}

func (l *Logger) RequestStart(sequence string, sequenceIndex int, request string, requestIndex int) {
	l.zap.Info("request_start",
		zap.String("sequence", sequence), zap.Int("sequence_index", sequenceIndex),
		zap.String("request", request), zap.Int("request_index", requestIndex))
}

func (l *Logger) RequestComplete(sequence string, sequenceIndex int, request string, requestIndex, status int, elapsedMs int64, attempts int) {
	l.zap.Info("request_complete",
		zap.String("sequence", sequence), zap.Int("sequence_index", sequenceIndex),
		zap.String("request", request), zap.Int("request_index", requestIndex),
		zap.Int("status", status), zap.Int64("elapsed_ms", elapsedMs), zap.Int("attempts", attempts))
}

// RetryWait logs a retry-wait decision with the computed delay (§4.8).
func (l *Logger) RetryWait(sequence string, request string, attempt int, wait time.Duration, reason string) {
	l.zap.Info("retry_wait",
		zap.String("sequence", sequence), zap.String("request", request),
		zap.Int("attempt", attempt), zap.Int64("wait_ms", wait.Milliseconds()), zap.String("reason", reason))
}

func (l *Logger) NonFatalError(sequence, request, msg string) {
	l.zap.Warn("non_fatal_error", zap.String("sequence", sequence), zap.String("request", request), zap.String("error", msg))
}
