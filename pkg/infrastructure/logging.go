// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxEventLogger routes Fx's own lifecycle events through a zap.Logger
// with structured fields. Hook and provide chatter stays at debug level;
// failures surface as errors.
type FxEventLogger struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter creates the fxevent.Logger handed to fx.WithLogger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxEventLogger{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger.
func (l *FxEventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("OnStart hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStartExecuted:
		l.hookResult("OnStart hook", e.FunctionName, e.CallerName, e.Runtime, e.Err)
	case *fxevent.OnStopExecuting:
		l.logger.Debug("OnStop hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStopExecuted:
		l.hookResult("OnStop hook", e.FunctionName, e.CallerName, e.Runtime, e.Err)
	case *fxevent.Supplied:
		l.valueEvent("supplied", e.TypeName, e.Err)
	case *fxevent.Provided:
		l.valueEvent("provided", strings.Join(e.OutputTypeNames, ", "), e.Err)
	case *fxevent.Decorated:
		l.valueEvent("decorated", strings.Join(e.OutputTypeNames, ", "), e.Err)
	case *fxevent.Invoking:
		l.logger.Debug("invoking", zap.String("function", e.FunctionName))
	case *fxevent.Invoked:
		if e.Err != nil {
			l.logger.Error("invoke failed",
				zap.String("function", e.FunctionName),
				zap.Error(e.Err))
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error("start failed", zap.Error(e.Err))
		} else {
			l.logger.Info("started")
		}
	case *fxevent.Stopping:
		l.logger.Info("stopping", zap.String("signal", strings.ToUpper(e.Signal.String())))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error("stop failed", zap.Error(e.Err))
		} else {
			l.logger.Info("stopped")
		}
	case *fxevent.RollingBack:
		l.logger.Error("start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.logger.Error("rollback failed", zap.Error(e.Err))
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error("custom logger initialization failed", zap.Error(e.Err))
		} else {
			l.logger.Debug("initialized custom fxevent.Logger",
				zap.String("constructor", e.ConstructorName))
		}
	default:
		l.logger.Debug("unhandled fx event", zap.String("type", fmt.Sprintf("%T", event)))
	}
}

func (l *FxEventLogger) hookResult(hook, callee, caller string, runtime time.Duration, err error) {
	if err != nil {
		l.logger.Error(hook+" failed",
			zap.String("callee", callee),
			zap.String("caller", caller),
			zap.Error(err))

		return
	}

	l.logger.Debug(hook+" executed",
		zap.String("callee", callee),
		zap.String("caller", caller),
		zap.Duration("runtime", runtime))
}

func (l *FxEventLogger) valueEvent(action, types string, err error) {
	if err != nil {
		l.logger.Error("error encountered while applying options",
			zap.String("action", action),
			zap.Error(err))

		return
	}

	l.logger.Debug(action, zap.String("types", types))
}
