package root

import (
	"github.com/medikube/platform/apps/cli/cmd/bootstrap"
	"github.com/medikube/platform/apps/cli/cmd/tenant"
	"github.com/medikube/platform/apps/cli/cmd/token"
)

func init() {
	Root().AddCommand(bootstrap.Command())
	Root().AddCommand(tenant.Command())
	Root().AddCommand(token.Command())
}
