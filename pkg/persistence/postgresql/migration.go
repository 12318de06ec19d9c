package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(64) PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				enabled BOOLEAN NOT NULL DEFAULT false,
				trigger JSONB NOT NULL,
				steps JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflows_created_at ON workflows(created_at);

			CREATE TABLE executions (
				id VARCHAR(64) PRIMARY KEY,
				workflow_id VARCHAR(64) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				status VARCHAR(20) NOT NULL,
				trigger_type VARCHAR(20) NOT NULL DEFAULT '',
				trigger_data JSONB NOT NULL DEFAULT '{}',
				steps JSONB NOT NULL DEFAULT '[]',
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				error_message TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_executions_workflow_id ON executions(workflow_id, id DESC);
		`,
		2: `
			CREATE TABLE secrets (
				name VARCHAR(63) PRIMARY KEY,
				value TEXT NOT NULL,
				secret_type VARCHAR(32) NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);
		`,
	}
}
