/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the file persistence behind the editor.
// Chapters live in sibling directories under a novel root: source text in raw/,
// translations in english/ and an append-only notes log per chapter in notes/.
// Port is the read/write surface keyed by source path; FileStore implements it with
// atomic replace writes and xz-compressed backups of overwritten source files.
// The novel manifest (novel.json) and the per-novel SQLite index at <root>/.gtr/index.sqlite
// are managed here too. The index is derived from the chapter files and can be rebuilt at any time.
package storage
