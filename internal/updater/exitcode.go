package updater

// ExitCode is the updater process's exit status. The host application
// launches the updater and inspects this value, so the numbers are wire
// contract, not implementation detail.
type ExitCode int

const (
	Success                     ExitCode = 0
	InvalidArguments            ExitCode = 1
	EnvironmentValidationFailed ExitCode = 2
	UpdateFailed                ExitCode = 3
	UserCancelled               ExitCode = 4
	UnexpectedError             ExitCode = 99
)

func (c ExitCode) String() string {
	switch c {
	case Success:
		return "success"
	case InvalidArguments:
		return "invalid arguments"
	case EnvironmentValidationFailed:
		return "environment validation failed"
	case UpdateFailed:
		return "update failed"
	case UserCancelled:
		return "cancelled by user"
	case UnexpectedError:
		return "unexpected error"
	default:
		return "unknown"
	}
}
