package consts

import "os"

const (
	// ModeDir is the standard file mode for creating directories
	ModeDir = os.FileMode(0o755)

	// ModeFile is the standard file mode for creating files
	ModeFile = os.FileMode(0o644)

	// ConfigFile is the default project configuration file name.
	ConfigFile = "snowkeeper.yaml"

	// OrderFile is the default name of the versioned script ordering file.
	OrderFile = "order_file.txt"

	// DefaultMetadataSchema is the schema holding the audit tables.
	DefaultMetadataSchema = "DEPLOY"

	// DefaultChangeHistoryTable records one row per applied script.
	DefaultChangeHistoryTable = "CHANGE_HISTORY"

	// DefaultBuildInfoTable records one row per build that touched scripts.
	DefaultBuildInfoTable = "BUILD_INFORMATION"

	// DefaultAdminRole is the role used when resizing the deployment warehouse.
	DefaultAdminRole = "CO_ADMIN"

	// DefaultSubtree restricts database mode to the warehouse project folder.
	DefaultSubtree = "/coEDW/"

	// DiffPageSize is the number of changes requested per diff service page.
	DiffPageSize = 100

	// DefaultDevOpsURL is the base URL of the Azure DevOps git API.
	DefaultDevOpsURL = "https://dev.azure.com/CareOregonInc/coEDW_Analytics/_apis/git/repositories"

	// DefaultDevOpsAPIVersion is the REST API version sent with every request.
	DefaultDevOpsAPIVersion = "7.1"

	// BuildTimeLayout is the layout of --build-start-time (yyyymmddhh24miss).
	BuildTimeLayout = "20060102150405"
)

// DefaultEnvironments is the fixed set of deployment environments.
var DefaultEnvironments = []string{"dev", "tst", "preprod", "prd"}
