package logger

import "go.uber.org/zap"

var log *zap.SugaredLogger

func Init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

func get() *zap.SugaredLogger {
	if log == nil {
		Init()
	}
	return log
}

func Info(msg string, kv ...interface{}) {
	get().Infow(msg, kv...)
}

func Warn(msg string, kv ...interface{}) {
	get().Warnw(msg, kv...)
}

func Error(msg string, kv ...interface{}) {
	get().Errorw(msg, kv...)
}
