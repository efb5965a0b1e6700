package types

// RepositoryCreateRequest registers a repository for investigation and,
// when RailwayProjectName is set, for deployment monitoring.
type RepositoryCreateRequest struct {
	Owner              string `json:"owner" validate:"required"`
	Name               string `json:"name" validate:"required"`
	DefaultBranch      string `json:"default_branch"`
	RailwayProjectName string `json:"railway_project_name"`
	AccessToken        string `json:"access_token"`
}

// InvestigateRequest manually triggers an investigation for a repository.
type InvestigateRequest struct {
	ErrorMessage   string `json:"error_message" validate:"required"`
	DeploymentLogs string `json:"deployment_logs"`
	CommitSHA      string `json:"commit_sha"`
}
