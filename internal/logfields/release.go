package logfields

import (
	"fmt"

	"go.uber.org/zap"
)

func RunID(val string) zap.Field {
	return zap.String("release.run_id", val)
}

func Version(val fmt.Stringer) zap.Field {
	return zap.Stringer("release.version", val)
}

func PreviousVersion(val fmt.Stringer) zap.Field {
	return zap.Stringer("release.previous_version", val)
}

func BumpKind(val fmt.Stringer) zap.Field {
	return zap.Stringer("release.bump_kind", val)
}

func State(val fmt.Stringer) zap.Field {
	return zap.Stringer("release.state", val)
}
