// Package logger provides the standard training progress reporter wired
// into the nn.TrainLogger seam. It throttles epoch reports to a configured
// frequency and can attach an externally computed validation error to each
// report.
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// TrainingLogger reports training progress through logrus.
type TrainingLogger struct {
	log       *logrus.Logger
	epochs    int
	frequency int
	errorFn   func() float64
	start     time.Time
}

// New creates a logger for a run of the given epoch count, emitting one
// report every frequency epochs. frequency <= 0 reports every epoch.
func New(epochs, frequency int) *TrainingLogger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &TrainingLogger{
		log:       l,
		epochs:    epochs,
		frequency: frequency,
	}
}

// SetErrorFn attaches a validation-error callback. It is evaluated on each
// emitted report and logged alongside the training loss; it never feeds
// back into the optimization.
func (t *TrainingLogger) SetErrorFn(fn func() float64) {
	t.errorFn = fn
}

// SetOutput redirects the log stream, useful in tests.
func (t *TrainingLogger) SetOutput(w io.Writer) {
	t.log.SetOutput(w)
}

// LogTrainStart marks the beginning of a training run.
func (t *TrainingLogger) LogTrainStart() {
	t.start = time.Now()
	t.log.WithField("epochs", t.epochs).Info("training started")
}

// LogTrainEpoch reports one epoch. Called by the training loop on every
// epoch; only every frequency-th report is emitted.
func (t *TrainingLogger) LogTrainEpoch(epoch int, loss float64) {
	if t.frequency > 0 && epoch%t.frequency != 0 {
		return
	}
	elapsed := time.Since(t.start)
	fields := logrus.Fields{
		"epoch":   epoch,
		"loss":    loss,
		"elapsed": elapsed.Round(time.Millisecond),
	}
	if epoch > 0 && t.epochs > epoch {
		perEpoch := elapsed / time.Duration(epoch)
		fields["eta"] = (perEpoch * time.Duration(t.epochs-epoch)).Round(time.Second)
	}
	if t.errorFn != nil {
		fields["val_err"] = t.errorFn()
	}
	t.log.WithFields(fields).Info("epoch")
}

// LogTrainEnd reports the final loss and the total wall time.
func (t *TrainingLogger) LogTrainEnd(epochs int, loss float64) {
	fields := logrus.Fields{
		"epochs":  epochs,
		"loss":    loss,
		"elapsed": time.Since(t.start).Round(time.Millisecond),
	}
	if t.errorFn != nil {
		fields["val_err"] = t.errorFn()
	}
	t.log.WithFields(fields).Info("training finished")
}
