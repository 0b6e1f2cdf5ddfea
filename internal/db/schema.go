package db

var Schema string = `
CREATE TABLE IF NOT EXISTS passages
(
    id   INTEGER PRIMARY KEY,

    label TEXT DEFAULT 'default',

    name TEXT,
    content TEXT,

    embedding_model TEXT,
    embedding_vector BLOB,

    created_at INTEGER DEFAULT (strftime('%s', 'now')),
    updated_at INTEGER DEFAULT (strftime('%s', 'now')),

    CONSTRAINT unique_label_name UNIQUE (label, name)
);

CREATE TABLE IF NOT EXISTS conversations
(
    id TEXT PRIMARY KEY,
    created_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS turns
(
    id INTEGER PRIMARY KEY,
    conversation_id TEXT NOT NULL REFERENCES conversations (id),
    seq INTEGER NOT NULL,

    role TEXT NOT NULL,
    text TEXT NOT NULL,
    raw TEXT NOT NULL DEFAULT '',
    flagged INTEGER NOT NULL DEFAULT 0,

    created_at INTEGER NOT NULL,

    CONSTRAINT unique_conversation_seq UNIQUE (conversation_id, seq)
);`
