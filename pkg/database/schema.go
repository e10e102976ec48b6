package database

// Migrations returns the built-in migration set, unordered
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "initial_schema", SQL: initialSchema},
		{Version: 2, Name: "seed_workflows", SQL: seedWorkflows},
	}
}

const initialSchema = `
CREATE TABLE workflow_definitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	entity_type TEXT NOT NULL CHECK (entity_type IN ('REQUEST', 'TASK')),
	version INTEGER NOT NULL DEFAULT 1,
	is_active INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE workflow_states (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id INTEGER NOT NULL REFERENCES workflow_definitions(id),
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	color TEXT NOT NULL DEFAULT '',
	sort_order INTEGER NOT NULL DEFAULT 0,
	is_initial INTEGER NOT NULL DEFAULT 0,
	is_final INTEGER NOT NULL DEFAULT 0,
	is_terminal INTEGER NOT NULL DEFAULT 0,
	UNIQUE (workflow_id, code)
);

CREATE TABLE workflow_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	workflow_id INTEGER NOT NULL REFERENCES workflow_definitions(id),
	from_state_id INTEGER NOT NULL REFERENCES workflow_states(id),
	to_state_id INTEGER NOT NULL REFERENCES workflow_states(id),
	allowed_roles TEXT NOT NULL DEFAULT '[]',
	requires_comment INTEGER NOT NULL DEFAULT 0,
	requires_fields TEXT NOT NULL DEFAULT '[]',
	auto_actions TEXT NOT NULL DEFAULT '[]',
	validator_code TEXT,
	UNIQUE (from_state_id, to_state_id)
);

CREATE TABLE requests (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	workflow_id INTEGER REFERENCES workflow_definitions(id),
	current_state_id INTEGER REFERENCES workflow_states(id),
	status TEXT NOT NULL,
	requester_id INTEGER NOT NULL,
	admin_id INTEGER,
	context TEXT NOT NULL DEFAULT '{}',
	requested_date DATETIME NOT NULL,
	start_date DATETIME,
	end_date DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_requests_requester ON requests(requester_id);
CREATE INDEX idx_requests_state ON requests(current_state_id);

CREATE TABLE tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	reference TEXT NOT NULL UNIQUE,
	type TEXT NOT NULL,
	workflow_id INTEGER REFERENCES workflow_definitions(id),
	current_state_id INTEGER REFERENCES workflow_states(id),
	status TEXT NOT NULL,
	creator_id INTEGER NOT NULL,
	context TEXT NOT NULL DEFAULT '{}',
	due_date DATETIME,
	completed_at DATETIME,
	voting_options TEXT,
	voting_ends_at DATETIME,
	reminder_sent_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_tasks_creator ON tasks(creator_id);
CREATE INDEX idx_tasks_state ON tasks(current_state_id);

CREATE TABLE task_assignments (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	task_id INTEGER NOT NULL REFERENCES tasks(id),
	assignee_id INTEGER NOT NULL,
	completed_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE (task_id, assignee_id)
);

CREATE TABLE state_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_id INTEGER NOT NULL,
	entity_type TEXT NOT NULL CHECK (entity_type IN ('REQUEST', 'TASK')),
	from_state_id INTEGER REFERENCES workflow_states(id),
	to_state_id INTEGER NOT NULL REFERENCES workflow_states(id),
	actor_id INTEGER NOT NULL,
	comment TEXT,
	metadata TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_state_history_entity ON state_history(entity_id, entity_type);

CREATE TABLE workflow_notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	entity_id INTEGER NOT NULL,
	entity_type TEXT NOT NULL,
	kind TEXT NOT NULL,
	message TEXT NOT NULL,
	read_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_notifications_user ON workflow_notifications(user_id);

CREATE TABLE calendar_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id INTEGER NOT NULL REFERENCES requests(id),
	user_id INTEGER NOT NULL,
	event_date DATETIME NOT NULL,
	kind TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_calendar_events_request ON calendar_events(request_id);

CREATE TABLE request_documents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id INTEGER NOT NULL REFERENCES requests(id),
	file_name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX idx_request_documents_request ON request_documents(request_id);
`

// seedWorkflows installs the four stock workflows. IDs are fixed so the
// transition rows can reference states directly.
const seedWorkflows = `
INSERT INTO workflow_definitions (id, code, name, description, entity_type) VALUES
	(1, 'request_free_day', 'Día libre', 'Solicitud de día de libre disposición', 'REQUEST'),
	(2, 'request_sick_leave', 'Baja médica', 'Comunicación de baja médica con justificante', 'REQUEST'),
	(3, 'task_generic', 'Tarea', 'Tarea interna genérica', 'TASK'),
	(4, 'task_voting', 'Votación', 'Votación entre el personal', 'TASK');

INSERT INTO workflow_states (id, workflow_id, code, name, color, sort_order, is_initial, is_final, is_terminal) VALUES
	(1, 1, 'pending', 'Pendiente', '#ff9800', 1, 1, 0, 0),
	(2, 1, 'approved', 'Aprobada', '#4caf50', 2, 0, 1, 0),
	(3, 1, 'rejected', 'Rechazada', '#f44336', 3, 0, 1, 1),
	(4, 1, 'cancelled_by_user', 'Cancelada', '#9e9e9e', 4, 0, 1, 1),
	(5, 2, 'pending_validation', 'Pendiente de validación', '#ff9800', 1, 1, 0, 0),
	(6, 2, 'validated', 'Validada', '#4caf50', 2, 0, 1, 0),
	(7, 2, 'rejected', 'Rechazada', '#f44336', 3, 0, 1, 1),
	(8, 3, 'open', 'Abierta', '#2196f3', 1, 1, 0, 0),
	(9, 3, 'in_progress', 'En curso', '#ff9800', 2, 0, 0, 0),
	(10, 3, 'done', 'Completada', '#4caf50', 3, 0, 1, 1),
	(11, 3, 'cancelled', 'Cancelada', '#9e9e9e', 4, 0, 1, 1),
	(12, 4, 'voting_open', 'Votación abierta', '#2196f3', 1, 1, 0, 0),
	(13, 4, 'voting_closed', 'Votación cerrada', '#4caf50', 2, 0, 1, 1),
	(14, 4, 'cancelled', 'Cancelada', '#9e9e9e', 3, 0, 1, 1);

INSERT INTO workflow_transitions (id, workflow_id, from_state_id, to_state_id, allowed_roles, requires_comment, requires_fields, auto_actions, validator_code) VALUES
	(1, 1, 1, 2, '["ADMIN","ROOT"]', 1, '[]', '["create_calendar_event","create_notification"]', NULL),
	(2, 1, 1, 3, '["ADMIN","ROOT"]', 1, '[]', '["create_notification"]', NULL),
	(3, 1, 2, 4, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '[]', '["remove_calendar_event","create_notification"]', NULL),
	(4, 2, 5, 6, '["ADMIN","ROOT"]', 0, '[]', '["create_calendar_event","create_notification"]', 'check_documents'),
	(5, 2, 5, 7, '["ADMIN","ROOT"]', 1, '[]', '["create_notification"]', NULL),
	(6, 3, 8, 9, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '[]', '[]', NULL),
	(7, 3, 8, 11, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '[]', '[]', NULL),
	(8, 3, 9, 10, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '["resolution"]', '["notify_assignees"]', NULL),
	(9, 3, 9, 11, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '[]', '[]', NULL),
	(10, 4, 12, 13, '["PROFESOR","SECRETARIA","ADMIN","ROOT"]', 0, '[]', '["notify_assignees"]', 'check_voting_closed'),
	(11, 4, 12, 14, '["ADMIN","ROOT"]', 0, '[]', '[]', NULL);
`
