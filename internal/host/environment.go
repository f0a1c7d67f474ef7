package host

import (
	"os"
	"path/filepath"
)

const indexLockRelativePathConstant = ".git/index.lock"

// IndexLockEnvironment reports the host as busy while another git process holds the index lock.
type IndexLockEnvironment struct {
	RepositoryPath string
}

// NewIndexLockEnvironment returns an environment watching repositoryPath.
func NewIndexLockEnvironment(repositoryPath string) IndexLockEnvironment {
	return IndexLockEnvironment{RepositoryPath: repositoryPath}
}

// IsSwitchingMode implements scheduler.Environment.
func (IndexLockEnvironment) IsSwitchingMode() bool { return false }

// IsCompiling implements scheduler.Environment.
func (IndexLockEnvironment) IsCompiling() bool { return false }

// IsBusy implements scheduler.Environment.
func (environment IndexLockEnvironment) IsBusy() bool {
	_, statError := os.Stat(filepath.Join(environment.RepositoryPath, filepath.FromSlash(indexLockRelativePathConstant)))
	return statError == nil
}
