package sqlassets

import _ "embed"

//go:embed schema/core/tenants.sql
var TenantsSQL string

//go:embed schema/core/users.sql
var UsersSQL string

//go:embed schema/core/accounts.sql
var AccountsSQL string
