package nn

// TrainLogger is the seam between the training loop and whatever reports
// progress. The loop calls LogTrainEpoch on every epoch; throttling and any
// validation-error reporting are the implementation's business.
type TrainLogger interface {
	LogTrainStart()
	LogTrainEpoch(epoch int, loss float64)
	LogTrainEnd(epochs int, loss float64)
}
