package registration

// Mode selects the transform family being optimized.
type Mode string

const (
	ModeRigid  Mode = "rigid"
	ModeAffine Mode = "affine"
)

// Metric selects the image similarity measure.
type Metric string

const (
	MetricMeanSquares       Metric = "mean_squares"
	MetricMutualInformation Metric = "mutual_information"
	MetricCorrelation       Metric = "correlation"
)

// Init selects how the initial transform is seeded.
type Init string

const (
	InitIdentity Init = "identity"
	InitCenters  Init = "centers"
	InitMoments  Init = "moments"
)

var (
	modeLabels = map[Mode]string{
		ModeRigid:  "Rigid",
		ModeAffine: "Affine",
	}
	metricLabels = map[Metric]string{
		MetricMeanSquares:       "Mean squared difference",
		MetricMutualInformation: "Mutual information",
		MetricCorrelation:       "Cross-correlation",
	}
	initLabels = map[Init]string{
		InitIdentity: "Identity",
		InitCenters:  "Image centers",
		InitMoments:  "Image moments",
	}
)

func (m Mode) Label() string   { return modeLabels[m] }
func (m Metric) Label() string { return metricLabels[m] }
func (i Init) Label() string   { return initLabels[i] }

// Domain listings in presentation order, for UI pickers.
func Modes() []Mode     { return []Mode{ModeRigid, ModeAffine} }
func Metrics() []Metric { return []Metric{MetricMeanSquares, MetricMutualInformation, MetricCorrelation} }
func Inits() []Init     { return []Init{InitIdentity, InitCenters, InitMoments} }
